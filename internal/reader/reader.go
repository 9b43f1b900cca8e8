// Package reader keeps one reading session per device. A session owns the
// device's feed paginator, reading state, membership gate and local
// namespace, and releases all of them when it is closed.
package reader

import (
	"context"
	"sync"
	"time"

	"github.com/oseayemenre/novelnest/internal/catalog"
	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/localstore"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/membership"
	"github.com/oseayemenre/novelnest/internal/reading"
	"github.com/oseayemenre/novelnest/internal/search"
)

const DefaultTTL = 30 * time.Minute

type Config struct {
	Feed             catalog.Config
	ProgressDebounce time.Duration
	MembershipBypass bool
	TTL              time.Duration
}

type Session struct {
	ID      string
	Feed    *catalog.Paginator
	Reading *reading.State
	Gate    *membership.Gate
	Local   localstore.Store
	Search  *search.History

	// ctx bounds the membership subscription, which outlives any request.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	userID   string
	lastSeen time.Time
	closed   bool
}

func newSession(id string, client collection.Client, local localstore.Store, logger logger.Logger, cfg Config, now time.Time) *Session {
	ns := localstore.WithPrefix(local, id)
	ctx, cancel := context.WithCancel(context.Background())

	gate := membership.NewGate(client, logger, cfg.MembershipBypass)
	gate.SetAnonymous()

	return &Session{
		ID:       id,
		Feed:     catalog.New(client, logger, cfg.Feed),
		Reading:  reading.New(ns, client, logger, cfg.ProgressDebounce),
		Gate:     gate,
		Local:    ns,
		Search:   search.NewHistory(ns),
		ctx:      ctx,
		cancel:   cancel,
		lastSeen: now,
	}
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Attach binds the session to userID, signing the previous user out first.
// An empty userID signs out. Attaching the current user again does nothing.
func (s *Session) Attach(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.userID == userID {
		s.mu.Unlock()
		if userID == "" || s.Reading.Loaded() {
			return nil
		}
		// An earlier remote read failed; retry it.
		return s.Reading.SignIn(ctx, userID)
	}
	previous := s.userID
	s.userID = userID
	s.mu.Unlock()

	if previous != "" {
		s.Reading.SignOut(ctx)
	}

	if userID == "" {
		s.Gate.SetAnonymous()
		return nil
	}

	gateErr := s.Gate.SetUser(s.ctx, userID)
	if err := s.Reading.SignIn(ctx, userID); err != nil {
		return err
	}
	return gateErr
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Close releases the debounce timer and the membership subscription.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Reading.Close()
	s.Gate.Close()
	s.cancel()
}

type Registry struct {
	client collection.Client
	local  localstore.Store
	logger logger.Logger
	config Config
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(client collection.Client, local localstore.Store, logger logger.Logger, config Config) *Registry {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}

	return &Registry{
		client:   client,
		local:    local,
		logger:   logger,
		config:   config,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for deviceID, creating it on first use.
func (r *Registry) Session(deviceID string) *Session {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[deviceID]
	if !ok {
		s = newSession(deviceID, r.client, r.local, r.logger, r.config, now)
		r.sessions[deviceID] = s
		r.logger.Debug("reader session opened", "service", "ReaderRegistry", "device", deviceID)
		return s
	}
	s.touch(now)
	return s
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes sessions idle for longer than the TTL and returns how many
// were closed.
func (r *Registry) Reap() int {
	now := r.now()

	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.idleSince(now) > r.config.TTL {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Reading.Flush(context.Background())
		s.Close()
	}
	if len(idle) > 0 {
		r.logger.Info("reaped idle reader sessions", "service", "ReaderRegistry", "count", len(idle))
	}
	return len(idle)
}

// Run reaps idle sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.config.TTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

// Close flushes and closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Reading.Flush(context.Background())
		s.Close()
	}
}
