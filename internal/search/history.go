package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oseayemenre/novelnest/internal/localstore"
)

const HistoryLimit = 5

// History keeps the most recent unique search terms in the local store.
type History struct {
	mu    sync.Mutex
	store localstore.Store
}

func NewHistory(store localstore.Store) *History {
	return &History{store: store}
}

func (h *History) Terms() ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terms()
}

func (h *History) terms() ([]string, error) {
	raw, err := h.store.Get(localstore.KeySearchHistory)
	if errors.Is(err, localstore.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	terms := []string{}
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		return []string{}, nil
	}
	return terms, nil
}

// Add puts term first, dropping an earlier copy and anything past the limit.
func (h *History) Add(term string) ([]string, error) {
	term = strings.TrimSpace(term)

	h.mu.Lock()
	defer h.mu.Unlock()

	terms, err := h.terms()
	if err != nil {
		return nil, err
	}
	if term == "" {
		return terms, nil
	}

	next := []string{term}
	for _, t := range terms {
		if t != term && len(next) < HistoryLimit {
			next = append(next, t)
		}
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	if err := h.store.Set(localstore.KeySearchHistory, string(raw)); err != nil {
		return nil, fmt.Errorf("error saving search history: %w", err)
	}
	return next, nil
}
