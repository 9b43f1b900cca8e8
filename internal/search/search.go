// Package search finds published novels by title, author or genre.
package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/models"
)

// scanBatch is the page size used while scanning published novels.
const scanBatch = 500

type Service struct {
	client collection.Client
	logger logger.Logger
	batch  int
}

func NewService(client collection.Client, logger logger.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
		batch:  scanBatch,
	}
}

// Search returns published novels whose title, author or genre contains term,
// newest first. An empty term matches nothing.
func (s *Service) Search(ctx context.Context, term string) ([]models.Novel, error) {
	needle := normalize(term)
	if needle == "" {
		return []models.Novel{}, nil
	}

	q := collection.Query{
		Collection: "novels",
		OrderBy:    []collection.Order{{Field: "createdAt", Desc: true}},
		Limit:      s.batch,
	}.Where("published", collection.OpEqual, true)

	results := []models.Novel{}
	for {
		docs, err := s.client.Query(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("error searching novels: %w", err)
		}

		for _, doc := range docs {
			var novel models.Novel
			if err := doc.Decode(&novel); err != nil {
				s.logger.Debug(fmt.Sprintf("skipping undecodable novel %s: %v", doc.ID, err), "service", "SearchService")
				continue
			}
			novel.ID = doc.ID

			if matches(novel, needle) {
				results = append(results, novel)
			}
		}

		if len(docs) < s.batch {
			return results, nil
		}
		q.StartAfter = docs[len(docs)-1].Cursor()
	}
}

func matches(novel models.Novel, needle string) bool {
	for _, field := range []string{novel.Title, novel.Author, novel.Genre} {
		if strings.Contains(normalize(field), needle) {
			return true
		}
	}
	return false
}

// normalize case-folds v. A Caser holds state, so one is made per call.
func normalize(v string) string {
	return cases.Fold().String(strings.TrimSpace(v))
}
