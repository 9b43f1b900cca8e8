// Package catalog pages through published novels, newest first, with bounded
// retries and a terminal connection-error state.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/models"
)

var ErrTimeout = errors.New("query timed out")

const novelsCollection = "novels"

type Config struct {
	PageSize    int
	Timeout     time.Duration
	MaxAttempts int
	BackoffStep time.Duration
}

func DefaultConfig() Config {
	return Config{
		PageSize:    6,
		Timeout:     8 * time.Second,
		MaxAttempts: 3,
		BackoffStep: 2 * time.Second,
	}
}

type Page struct {
	Novels  []models.Novel
	HasMore bool
}

type State struct {
	Novels          []models.Novel
	HasMore         bool
	Loading         bool
	ConnectionError bool
	LastError       error
	Attempts        int
}

type Paginator struct {
	client collection.Client
	logger logger.Logger
	config Config
	sleep  func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	novels   []models.Novel
	cursor   *collection.Cursor
	hasMore  bool
	loading  bool
	connErr  bool
	lastErr  error
	attempts int
	pageSize int
}

func New(client collection.Client, logger logger.Logger, config Config) *Paginator {
	if config.PageSize <= 0 {
		config.PageSize = DefaultConfig().PageSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &Paginator{
		client:   client,
		logger:   logger,
		config:   config,
		sleep:    sleepContext,
		hasMore:  true,
		pageSize: config.PageSize,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LoadInitialPage replaces the list with the first page. A pageSize of 0
// keeps the configured size.
func (p *Paginator) LoadInitialPage(ctx context.Context, pageSize int) Page {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return Page{}
	}
	if pageSize > 0 {
		p.pageSize = pageSize
	}
	p.loading = true
	p.connErr = false
	p.lastErr = nil
	p.attempts = 0
	size := p.pageSize
	p.mu.Unlock()

	novels, cursor, n, err := p.fetch(ctx, nil, size)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false

	if err != nil {
		return Page{}
	}

	p.novels = novels
	p.cursor = cursor
	p.hasMore = n == size

	return Page{Novels: clone(novels), HasMore: p.hasMore}
}

// LoadNextPage appends the page after the stored cursor. It returns an empty
// page without querying when a load is in flight, the list is exhausted, no
// cursor is held, or the paginator is in the connection-error state.
func (p *Paginator) LoadNextPage(ctx context.Context) Page {
	p.mu.Lock()
	if p.loading || p.cursor == nil || !p.hasMore || p.connErr {
		p.mu.Unlock()
		return Page{}
	}
	p.loading = true
	cursor := p.cursor
	size := p.pageSize
	p.mu.Unlock()

	novels, next, n, err := p.fetch(ctx, cursor, size)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.loading = false

	if err != nil {
		return Page{}
	}

	p.novels = append(p.novels, novels...)
	if next != nil {
		p.cursor = next
	}
	p.hasMore = n == size

	return Page{Novels: clone(novels), HasMore: p.hasMore}
}

// Retry clears the connection error and reloads from the first page.
func (p *Paginator) Retry(ctx context.Context) Page {
	return p.LoadInitialPage(ctx, 0)
}

func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return State{
		Novels:          clone(p.novels),
		HasMore:         p.hasMore,
		Loading:         p.loading,
		ConnectionError: p.connErr,
		LastError:       p.lastErr,
		Attempts:        p.attempts,
	}
}

// fetch runs the page query with linear backoff between failed attempts.
// After MaxAttempts consecutive failures the paginator enters the
// connection-error state. n is the number of documents the page returned.
func (p *Paginator) fetch(ctx context.Context, cursor *collection.Cursor, size int) ([]models.Novel, *collection.Cursor, int, error) {
	q := collection.Query{
		Collection: novelsCollection,
		Filters:    []collection.Filter{{Field: "published", Op: collection.OpEqual, Value: true}},
		OrderBy:    []collection.Order{{Field: "createdAt", Desc: true}},
		Limit:      size,
		StartAfter: cursor,
	}

	var lastErr error
	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		docs, err := p.queryWithTimeout(ctx, q)
		if err == nil {
			p.mu.Lock()
			p.attempts = 0
			p.lastErr = nil
			p.mu.Unlock()

			novels, next := p.decode(docs)
			return novels, next, len(docs), nil
		}

		lastErr = err
		p.logger.Warn(fmt.Sprintf("error loading novels: %v", err), "service", "Paginator", "attempt", attempt)

		p.mu.Lock()
		p.attempts = attempt
		p.lastErr = err
		p.mu.Unlock()

		if ctx.Err() != nil {
			return nil, nil, 0, ctx.Err()
		}

		if attempt == p.config.MaxAttempts {
			break
		}

		if err := p.sleep(ctx, time.Duration(attempt)*p.config.BackoffStep); err != nil {
			return nil, nil, 0, err
		}
	}

	p.mu.Lock()
	p.connErr = true
	p.mu.Unlock()

	p.logger.Error(fmt.Sprintf("giving up loading novels after %d attempts: %v", p.config.MaxAttempts, lastErr), "service", "Paginator")

	return nil, nil, 0, lastErr
}

type queryResult struct {
	docs []collection.Document
	err  error
}

// queryWithTimeout races the query against the configured timeout, so a
// client that ignores its context still cannot stall the paginator.
func (p *Paginator) queryWithTimeout(ctx context.Context, q collection.Query) ([]collection.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	ch := make(chan queryResult, 1)
	go func() {
		docs, err := p.client.Query(ctx, q)
		ch <- queryResult{docs: docs, err: err}
	}()

	var res queryResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, ErrTimeout
	}
	return res.docs, res.err
}

func (p *Paginator) decode(docs []collection.Document) ([]models.Novel, *collection.Cursor) {
	novels := make([]models.Novel, 0, len(docs))
	for _, d := range docs {
		var n models.Novel
		if err := d.Decode(&n); err != nil {
			p.logger.Warn(fmt.Sprintf("skipping malformed novel %s: %v", d.ID, err), "service", "Paginator")
			continue
		}
		n.ID = d.ID
		novels = append(novels, n)
	}

	var cursor *collection.Cursor
	if len(docs) > 0 {
		cursor = docs[len(docs)-1].Cursor()
	}
	return novels, cursor
}

func clone(novels []models.Novel) []models.Novel {
	if novels == nil {
		return nil
	}
	return append([]models.Novel(nil), novels...)
}
