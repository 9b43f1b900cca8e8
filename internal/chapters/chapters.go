// Package chapters resolves a novel's chapters across the three layouts a
// novel document may use: a chapters subcollection, a chapters array field,
// or individually keyed chapter<N> fields.
package chapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/models"
)

var ErrChapterNotFound = errors.New("chapter not found")

const lookupTimeout = 15 * time.Second

// Strategy is one chapter layout. Content returns nil without an error when
// the chapter is not stored in this layout.
type Strategy interface {
	Name() string
	List(ctx context.Context, novelID string) ([]models.ChapterSummary, error)
	Content(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error)
}

type Resolver struct {
	strategies []Strategy
	logger     logger.Logger
	group      singleflight.Group
}

func NewResolver(logger logger.Logger, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, logger: logger}
}

// DefaultStrategies returns the layouts in lookup order.
func DefaultStrategies(client collection.Client) []Strategy {
	return []Strategy{
		&Subcollection{client: client, limit: subcollectionLimit},
		&ArrayField{client: client},
		&KeyedFields{client: client},
	}
}

func New(client collection.Client, logger logger.Logger) *Resolver {
	return NewResolver(logger, DefaultStrategies(client)...)
}

// ListChapters returns the first non-empty listing. Strategy errors are
// treated as an empty result.
func (r *Resolver) ListChapters(ctx context.Context, novelID string) []models.ChapterSummary {
	for _, s := range r.strategies {
		chapters, err := s.List(ctx, novelID)
		if err != nil {
			r.logger.Debug(fmt.Sprintf("error listing chapters: %v", err), "strategy", s.Name(), "novel", novelID)
			continue
		}
		if len(chapters) > 0 {
			return chapters
		}
	}
	return []models.ChapterSummary{}
}

// GetChapterContent tries each layout in order. Concurrent lookups of the same
// chapter share one run, which does not inherit any caller's cancellation.
func (r *Resolver) GetChapterContent(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error) {
	ch := r.group.DoChan(novelID+"/"+chapterID, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		for _, s := range r.strategies {
			chapter, err := s.Content(lookupCtx, novelID, chapterID)
			if err != nil {
				r.logger.Debug(fmt.Sprintf("error getting chapter content: %v", err), "strategy", s.Name(), "novel", novelID, "chapter", chapterID)
				continue
			}
			if chapter != nil {
				return chapter, nil
			}
		}
		return nil, ErrChapterNotFound
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		chapter := *res.Val.(*models.Chapter)
		return &chapter, nil
	}
}
