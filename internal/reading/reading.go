// Package reading holds a reader's bookmarks, reading history and progress.
// Every change is written to the local store at once and, for a signed-in
// user, mirrored to the user document after a quiet period.
package reading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/localstore"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/models"
)

const (
	HistoryLimit    = 50
	DefaultDebounce = time.Second

	remoteWriteTimeout = 10 * time.Second
)

type State struct {
	local    localstore.Store
	remote   collection.Client
	logger   logger.Logger
	debounce time.Duration
	now      func() time.Time

	mu         sync.Mutex
	bookmarks  []string
	history    []models.HistoryEntry
	progress   map[string]float64
	userID     string
	loaded     bool
	timer      *time.Timer
	generation uint64
	pending    sync.WaitGroup
	closed     bool
}

func New(local localstore.Store, remote collection.Client, logger logger.Logger, debounce time.Duration) *State {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	s := &State{
		local:    local,
		remote:   remote,
		logger:   logger,
		debounce: debounce,
		now:      time.Now,
		progress: make(map[string]float64),
	}
	s.loadLocal()
	return s
}

func (s *State) loadLocal() {
	for key, dst := range map[string]any{
		localstore.KeyBookmarks:      &s.bookmarks,
		localstore.KeyReadingHistory: &s.history,
		localstore.KeyReadProgress:   &s.progress,
	} {
		raw, err := s.local.Get(key)
		if errors.Is(err, localstore.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			s.logger.Warn(fmt.Sprintf("error reading local %s: %v", key, err), "service", "ReadingState")
			continue
		}
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			s.logger.Warn(fmt.Sprintf("discarding malformed local %s: %v", key, err), "service", "ReadingState")
		}
	}
	if s.progress == nil {
		s.progress = make(map[string]float64)
	}
}

// ToggleBookmark flips the bookmark for novelID and reports whether it is now
// bookmarked.
func (s *State) ToggleBookmark(novelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bookmarked := false
	if i := slices.Index(s.bookmarks, novelID); i >= 0 {
		s.bookmarks = slices.Delete(s.bookmarks, i, i+1)
	} else {
		s.bookmarks = append(s.bookmarks, novelID)
		bookmarked = true
	}

	s.changed(localstore.KeyBookmarks, s.bookmarks)
	return bookmarked
}

// AddToHistory moves the (novel, chapter) pair to the front of the history,
// keeping at most HistoryLimit entries.
func (s *State) AddToHistory(entry models.HistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = slices.DeleteFunc(s.history, func(h models.HistoryEntry) bool {
		return h.NovelID == entry.NovelID && h.ChapterID == entry.ChapterID
	})
	s.history = append([]models.HistoryEntry{entry}, s.history...)
	if len(s.history) > HistoryLimit {
		s.history = s.history[:HistoryLimit]
	}

	s.changed(localstore.KeyReadingHistory, s.history)
}

// UpdateProgress records the read fraction of a chapter, clamped to [0, 1].
func (s *State) UpdateProgress(novelID string, chapterID string, fraction float64) {
	switch {
	case math.IsNaN(fraction) || fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progressKey(novelID, chapterID)] = fraction
	s.changed(localstore.KeyReadProgress, s.progress)
}

func progressKey(novelID string, chapterID string) string {
	return novelID + ":" + chapterID
}

func (s *State) Bookmarks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.bookmarks...)
}

func (s *State) IsBookmarked(novelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.bookmarks, novelID)
}

func (s *State) History() []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.HistoryEntry{}, s.history...)
}

func (s *State) Progress(novelID string, chapterID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[progressKey(novelID, chapterID)]
}

func (s *State) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Loaded reports whether the attached user's remote state has been read.
// Remote writes stay off until it has.
func (s *State) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID != "" && s.loaded
}

// changed persists one key locally and schedules the remote write. Callers
// hold s.mu.
func (s *State) changed(key string, value any) {
	raw, err := json.Marshal(value)
	if err == nil {
		err = s.local.Set(key, string(raw))
	}
	if err != nil {
		s.logger.Warn(fmt.Sprintf("error writing local %s: %v", key, err), "service", "ReadingState")
	}

	if s.userID != "" && s.loaded && !s.closed {
		s.schedule()
	}
}

// schedule restarts the debounce window. Only the callback holding the latest
// generation writes. Callers hold s.mu.
func (s *State) schedule() {
	s.stopTimer()
	s.generation++
	gen := s.generation

	s.pending.Add(1)
	s.timer = time.AfterFunc(s.debounce, func() {
		defer s.pending.Done()
		s.flushGeneration(gen)
	})
}

// stopTimer cancels a pending write. Callers hold s.mu.
func (s *State) stopTimer() bool {
	if s.timer == nil {
		return false
	}
	stopped := s.timer.Stop()
	if stopped {
		s.pending.Done()
	}
	s.timer = nil
	return stopped
}

func (s *State) flushGeneration(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.userID == "" || !s.loaded {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	userID, fields := s.userID, s.remoteFields()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
	defer cancel()

	s.writeRemote(ctx, userID, fields)
}

func (s *State) writeRemote(ctx context.Context, userID string, fields map[string]any) {
	if err := s.remote.Update(ctx, collection.Join("users", userID), fields); err != nil {
		s.logger.Warn(fmt.Sprintf("error saving reading state: %v", err), "service", "ReadingState", "user", userID)
	}
}

// remoteFields snapshots the state. Callers hold s.mu.
func (s *State) remoteFields() map[string]any {
	history := make([]map[string]any, 0, len(s.history))
	for _, h := range s.history {
		history = append(history, h.Fields())
	}

	progress := make(map[string]any, len(s.progress))
	for k, v := range s.progress {
		progress[k] = v
	}

	return map[string]any{
		"bookmarks":      append([]string{}, s.bookmarks...),
		"readingHistory": history,
		"readProgress":   progress,
	}
}

type remoteState struct {
	Bookmarks      []string              `firestore:"bookmarks"`
	ReadingHistory []models.HistoryEntry `firestore:"readingHistory"`
	ReadProgress   map[string]float64    `firestore:"readProgress"`
}

// SignIn attaches userID. When the user document exists its reading state
// replaces the local state wholesale; local changes made while anonymous are
// not merged. When the remote read fails the user stays attached but no
// remote write runs until a later SignIn succeeds.
func (s *State) SignIn(ctx context.Context, userID string) error {
	s.mu.Lock()
	s.stopTimer()
	s.generation++
	s.userID = userID
	s.loaded = false
	s.mu.Unlock()

	doc, err := s.remote.Get(ctx, collection.Join("users", userID))
	if errors.Is(err, collection.ErrNotFound) {
		s.mu.Lock()
		if s.userID == userID {
			s.loaded = true
		}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.logger.Warn(fmt.Sprintf("error loading reading state: %v", err), "service", "ReadingState", "user", userID)
		return fmt.Errorf("error loading reading state: %w", err)
	}

	var remote remoteState
	if err := doc.Decode(&remote); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != userID {
		return nil
	}

	s.bookmarks = remote.Bookmarks
	s.history = remote.ReadingHistory
	s.progress = remote.ReadProgress
	if s.progress == nil {
		s.progress = make(map[string]float64)
	}
	s.loaded = true

	for key, value := range map[string]any{
		localstore.KeyBookmarks:      s.bookmarks,
		localstore.KeyReadingHistory: s.history,
		localstore.KeyReadProgress:   s.progress,
	} {
		raw, _ := json.Marshal(value)
		if err := s.local.Set(key, string(raw)); err != nil {
			s.logger.Warn(fmt.Sprintf("error writing local %s: %v", key, err), "service", "ReadingState")
		}
	}

	return nil
}

// Flush writes a pending change now instead of waiting for the timer.
func (s *State) Flush(ctx context.Context) {
	s.mu.Lock()
	if !s.stopTimer() || s.userID == "" || !s.loaded {
		s.mu.Unlock()
		return
	}
	s.generation++
	userID, fields := s.userID, s.remoteFields()
	s.mu.Unlock()

	s.writeRemote(ctx, userID, fields)
}

// SignOut flushes any pending write and detaches the user. Local state is
// kept.
func (s *State) SignOut(ctx context.Context) {
	s.Flush(ctx)

	s.mu.Lock()
	s.userID = ""
	s.loaded = false
	s.generation++
	s.mu.Unlock()
}

// Close cancels a pending remote write and waits for one already running.
func (s *State) Close() {
	s.mu.Lock()
	s.stopTimer()
	s.generation++
	s.closed = true
	s.mu.Unlock()

	s.pending.Wait()
}
