// Package localstore is the synchronous, string-keyed local fallback store.
package localstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
)

var ErrKeyNotFound = errors.New("key not found")

const (
	KeyTheme          = "theme"
	KeyFontSize       = "fontSize"
	KeySearchHistory  = "searchHistory"
	KeyLastView       = "lastView"
	KeyBookmarks      = "bookmarks"
	KeyReadingHistory = "readingHistory"
	KeyReadProgress   = "readProgress"
)

type Store interface {
	Get(key string) (string, error)
	Set(key string, value string) error
}

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("error opening pebble database: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (p *PebbleStore) Get(key string) (string, error) {
	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", key, err)
	}
	defer closer.Close()

	return string(value), nil
}

func (p *PebbleStore) Set(key string, value string) error {
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("error writing %s: %w", key, err)
	}
	return nil
}

func (p *PebbleStore) Close() error {
	return p.db.Close()
}

type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (m *Memory) Set(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Prefixed namespaces every key of an underlying store, one namespace per
// device.
type Prefixed struct {
	store  Store
	prefix string
}

func WithPrefix(store Store, prefix string) *Prefixed {
	return &Prefixed{store: store, prefix: prefix + ":"}
}

func (p *Prefixed) Get(key string) (string, error) {
	return p.store.Get(p.prefix + key)
}

func (p *Prefixed) Set(key string, value string) error {
	return p.store.Set(p.prefix+key, value)
}
