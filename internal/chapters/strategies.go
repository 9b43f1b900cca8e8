package chapters

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/models"
)

const subcollectionLimit = 50

type Subcollection struct {
	client collection.Client
	limit  int
}

func (s *Subcollection) Name() string { return "subcollection" }

func (s *Subcollection) List(ctx context.Context, novelID string) ([]models.ChapterSummary, error) {
	docs, err := s.client.Query(ctx, collection.Query{
		Collection: collection.Join("novels", novelID, "chapters"),
		OrderBy:    []collection.Order{{Field: "number"}},
		Limit:      s.limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.ChapterSummary, 0, len(docs))
	for _, d := range docs {
		c, err := decodeChapter(d.Data, d.ID, 0)
		if err != nil {
			return nil, err
		}
		c.ID = d.ID
		out = append(out, c.Summary())
	}
	return out, nil
}

func (s *Subcollection) Content(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error) {
	doc, err := s.client.Get(ctx, collection.Join("novels", novelID, "chapters", chapterID))
	if errors.Is(err, collection.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c, err := decodeChapter(doc.Data, doc.ID, 0)
	if err != nil {
		return nil, err
	}
	c.ID = doc.ID
	return c, nil
}

// ArrayField reads the chapters array on the novel document. Entries without
// a number take their 1-based position.
type ArrayField struct {
	client collection.Client
}

func (a *ArrayField) Name() string { return "array" }

func (a *ArrayField) chapters(ctx context.Context, novelID string) ([]*models.Chapter, error) {
	doc, err := a.client.Get(ctx, collection.Join("novels", novelID))
	if err != nil {
		return nil, err
	}

	raw, ok := doc.Data["chapters"].([]any)
	if !ok {
		return nil, nil
	}

	out := make([]*models.Chapter, 0, len(raw))
	for i, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c, err := decodeChapter(fields, "", i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (a *ArrayField) List(ctx context.Context, novelID string) ([]models.ChapterSummary, error) {
	chapters, err := a.chapters(ctx, novelID)
	if err != nil {
		return nil, err
	}
	return summaries(chapters), nil
}

func (a *ArrayField) Content(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error) {
	chapters, err := a.chapters(ctx, novelID)
	if err != nil {
		return nil, err
	}
	return find(chapters, chapterID), nil
}

var keyedField = regexp.MustCompile(`^chapter(\d+)$`)

// KeyedFields scans chapter<N> fields on the novel document, ordered by N.
type KeyedFields struct {
	client collection.Client
}

func (k *KeyedFields) Name() string { return "keyed" }

func (k *KeyedFields) chapters(ctx context.Context, novelID string) ([]*models.Chapter, error) {
	doc, err := k.client.Get(ctx, collection.Join("novels", novelID))
	if err != nil {
		return nil, err
	}

	type keyed struct {
		n   int
		key string
	}
	var keys []keyed
	for key := range doc.Data {
		m := keyedField.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		keys = append(keys, keyed{n: n, key: key})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].n < keys[j].n })

	out := make([]*models.Chapter, 0, len(keys))
	for _, kk := range keys {
		fields, ok := doc.Data[kk.key].(map[string]any)
		if !ok {
			continue
		}
		c, err := decodeChapter(fields, kk.key, kk.n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (k *KeyedFields) List(ctx context.Context, novelID string) ([]models.ChapterSummary, error) {
	chapters, err := k.chapters(ctx, novelID)
	if err != nil {
		return nil, err
	}
	return summaries(chapters), nil
}

func (k *KeyedFields) Content(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error) {
	chapters, err := k.chapters(ctx, novelID)
	if err != nil {
		return nil, err
	}
	return find(chapters, chapterID), nil
}

// decodeChapter fills in a missing id from fallbackID, or from the number
// when fallbackID is empty, and a missing number from fallbackNumber.
func decodeChapter(fields map[string]any, fallbackID string, fallbackNumber int) (*models.Chapter, error) {
	var c models.Chapter
	if err := collection.Decode(fields, &c); err != nil {
		return nil, fmt.Errorf("error decoding chapter: %w", err)
	}
	if c.Number == 0 {
		c.Number = fallbackNumber
	}
	if c.ID == "" {
		c.ID = fallbackID
	}
	if c.ID == "" {
		c.ID = strconv.Itoa(c.Number)
	}
	return &c, nil
}

func summaries(chapters []*models.Chapter) []models.ChapterSummary {
	out := make([]models.ChapterSummary, 0, len(chapters))
	for _, c := range chapters {
		out = append(out, c.Summary())
	}
	return out
}

func find(chapters []*models.Chapter, id string) *models.Chapter {
	for _, c := range chapters {
		if c.ID == id {
			return c
		}
	}
	return nil
}
