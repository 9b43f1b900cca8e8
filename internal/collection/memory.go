package collection

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memorySubscriber struct {
	id    int
	query Query
	fn    func([]Document)
}

// Memory is an in-process Client. Subscribers are notified synchronously by
// the writer after the write is committed.
type Memory struct {
	mu          sync.RWMutex
	docs        map[string]map[string]map[string]any
	subscribers map[int]*memorySubscriber
	nextID      int
}

func NewMemory() *Memory {
	return &Memory{
		docs:        make(map[string]map[string]map[string]any),
		subscribers: make(map[int]*memorySubscriber),
	}
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.query(q), nil
}

func (m *Memory) query(q Query) []Document {
	var out []Document

	for id, data := range m.docs[q.Collection] {
		keep := true
		for _, f := range q.Filters {
			if !matches(data, f) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, Document{ID: id, Path: Join(q.Collection, id), Data: cloneMap(data)})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(q.OrderBy, out[i].ID, out[i].Data, out[j].ID, out[j].Data)
	})

	if q.StartAfter != nil {
		start := len(out)
		for i, d := range out {
			if less(q.OrderBy, q.StartAfter.id, q.StartAfter.data, d.ID, d.Data) {
				start = i
				break
			}
		}
		out = out[start:]
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}

	return out
}

// less orders documents by the given fields, then by id in the direction of
// the last order field. Missing fields sort first.
func less(orders []Order, aID string, a map[string]any, bID string, b map[string]any) bool {
	desc := false
	for _, o := range orders {
		desc = o.Desc
		c, _ := compare(a[o.Field], b[o.Field])
		if c == 0 {
			continue
		}
		if o.Desc {
			return c > 0
		}
		return c < 0
	}
	if desc {
		return aID > bID
	}
	return aID < bID
}

func (m *Memory) Get(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	col, id, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[col][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return &Document{ID: id, Path: Join(col, id), Data: cloneMap(data)}, nil
}

func (m *Memory) Set(ctx context.Context, path string, data map[string]any) error {
	return m.write(ctx, path, func(current map[string]any, exists bool) (map[string]any, error) {
		return cloneMap(data), nil
	})
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	return m.write(ctx, path, func(current map[string]any, exists bool) (map[string]any, error) {
		if !exists {
			current = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			current[k] = cloneValue(v)
		}
		return current, nil
	})
}

func (m *Memory) Increment(ctx context.Context, path string, field string, delta int64) error {
	return m.write(ctx, path, func(current map[string]any, exists bool) (map[string]any, error) {
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		switch v := current[field].(type) {
		case nil:
			current[field] = delta
		case float64:
			current[field] = v + float64(delta)
		default:
			n, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("field %q is not numeric", field)
			}
			current[field] = int64(n) + delta
		}
		return current, nil
	})
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.write(ctx, path, func(current map[string]any, exists bool) (map[string]any, error) {
		return nil, nil
	})
}

func (m *Memory) write(ctx context.Context, path string, fn func(map[string]any, bool) (map[string]any, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	col, id, err := splitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	current, exists := m.docs[col][id]
	next, err := fn(current, exists)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if next == nil {
		delete(m.docs[col], id)
	} else {
		if m.docs[col] == nil {
			m.docs[col] = make(map[string]map[string]any)
		}
		m.docs[col][id] = next
	}

	type delivery struct {
		fn   func([]Document)
		docs []Document
	}
	var deliveries []delivery
	for _, s := range m.subscribers {
		if s.query.Collection == col {
			deliveries = append(deliveries, delivery{fn: s.fn, docs: m.query(s.query)})
		}
	}
	m.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.docs)
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.nextID++
	sub := &memorySubscriber{id: m.nextID, query: q, fn: fn}
	m.subscribers[sub.id] = sub
	initial := m.query(q)
	m.mu.Unlock()

	fn(initial)

	return &memorySubscription{m: m, id: sub.id}, nil
}

// Subscribers reports the number of live subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = make(map[int]*memorySubscriber)
	return nil
}

type memorySubscription struct {
	m    *Memory
	id   int
	once sync.Once
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.m.mu.Lock()
		delete(s.m.subscribers, s.id)
		s.m.mu.Unlock()
	})
	return nil
}
