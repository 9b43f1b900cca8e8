// Package novels implements the editor and admin actions on novels.
package novels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/objectstore"
)

var (
	ErrNovelNotFound = errors.New("novel not found")
	ErrCoverUpload   = errors.New("error uploading cover")
)

const viewTimeout = 5 * time.Second

type ViewCounter interface {
	IncrementViews(ctx context.Context, novelID string) error
}

// DirectCounter increments the views field in place.
type DirectCounter struct {
	client collection.Client
}

func NewDirectCounter(client collection.Client) *DirectCounter {
	return &DirectCounter{client: client}
}

func (d *DirectCounter) IncrementViews(ctx context.Context, novelID string) error {
	err := d.client.Increment(ctx, collection.Join("novels", novelID), "views", 1)
	if errors.Is(err, collection.ErrNotFound) {
		return ErrNovelNotFound
	}
	return err
}

type CreateInput struct {
	Title         string
	Author        string
	Genre         string
	Summary       string
	Status        models.NovelStatus
	TotalChapters int
	Featured      bool
}

type Service struct {
	client      collection.Client
	objectStore objectstore.ObjectStore
	counter     ViewCounter
	logger      logger.Logger
	now         func() time.Time
	views       sync.WaitGroup
}

func NewService(client collection.Client, objectStore objectstore.ObjectStore, counter ViewCounter, logger logger.Logger) *Service {
	return &Service{
		client:      client,
		objectStore: objectStore,
		counter:     counter,
		logger:      logger,
		now:         time.Now,
	}
}

// Create stores an unpublished novel. cover may be nil.
func (s *Service) Create(ctx context.Context, input CreateInput, cover io.Reader) (*models.Novel, error) {
	status := input.Status
	if status == "" {
		status = models.StatusOngoing
	}

	novel := &models.Novel{
		ID:            uuid.NewString(),
		Title:         input.Title,
		Author:        input.Author,
		Genre:         input.Genre,
		Summary:       input.Summary,
		Status:        status,
		TotalChapters: input.TotalChapters,
		Featured:      input.Featured,
		CreatedAt:     s.now().UTC(),
	}

	if cover != nil {
		url, err := s.objectStore.UploadFile(ctx, cover, novel.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCoverUpload, err)
		}
		novel.CoverImage = url
	}

	if err := s.client.Set(ctx, collection.Join("novels", novel.ID), novel.Fields()); err != nil {
		return nil, fmt.Errorf("error saving novel: %w", err)
	}

	s.logger.Info("novel created", "service", "NovelService", "novel", novel.ID)
	return novel, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Novel, error) {
	doc, err := s.client.Get(ctx, collection.Join("novels", id))
	if errors.Is(err, collection.ErrNotFound) {
		return nil, ErrNovelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting novel: %w", err)
	}

	var novel models.Novel
	if err := doc.Decode(&novel); err != nil {
		return nil, err
	}
	novel.ID = doc.ID
	return &novel, nil
}

func (s *Service) SetPublished(ctx context.Context, id string, published bool) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.client.Update(ctx, collection.Join("novels", id), map[string]any{"published": published}); err != nil {
		return fmt.Errorf("error updating novel: %w", err)
	}
	return nil
}

// AddChapter stores a chapter in the novel's chapters subcollection.
func (s *Service) AddChapter(ctx context.Context, novelID string, chapter models.Chapter) (*models.Chapter, error) {
	if _, err := s.Get(ctx, novelID); err != nil {
		return nil, err
	}
	if chapter.ID == "" {
		chapter.ID = uuid.NewString()
	}

	if err := s.client.Set(ctx, collection.Join("novels", novelID, "chapters", chapter.ID), chapter.Fields()); err != nil {
		return nil, fmt.Errorf("error saving chapter: %w", err)
	}
	if err := s.client.Increment(ctx, collection.Join("novels", novelID), "totalChapters", 1); err != nil {
		s.logger.Warn(fmt.Sprintf("error updating chapter count: %v", err), "service", "NovelService", "novel", novelID)
	}
	return &chapter, nil
}

// Delete removes the novel and its chapters subcollection.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	chapters, err := s.client.Query(ctx, collection.Query{Collection: collection.Join("novels", id, "chapters")})
	if err != nil {
		return fmt.Errorf("error listing chapters: %w", err)
	}
	for _, c := range chapters {
		if err := s.client.Delete(ctx, c.Path); err != nil {
			return fmt.Errorf("error deleting chapter: %w", err)
		}
	}

	if err := s.client.Delete(ctx, collection.Join("novels", id)); err != nil {
		return fmt.Errorf("error deleting novel: %w", err)
	}

	s.logger.Info("novel deleted", "service", "NovelService", "novel", id)
	return nil
}

// RecordView counts a view in the background. Failures are logged.
func (s *Service) RecordView(novelID string) {
	s.views.Add(1)
	go func() {
		defer s.views.Done()

		ctx, cancel := context.WithTimeout(context.Background(), viewTimeout)
		defer cancel()

		if err := s.counter.IncrementViews(ctx, novelID); err != nil {
			s.logger.Warn(fmt.Sprintf("error recording view: %v", err), "service", "NovelService", "novel", novelID)
		}
	}()
}

// Wait blocks until background view writes finish.
func (s *Service) Wait() {
	s.views.Wait()
}
