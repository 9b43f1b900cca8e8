// Package collection is the remote document store the rest of the system reads
// and writes through. Backends: Firestore, Postgres (JSONB documents) and an
// in-memory store used for local development and tests.
package collection

//go:generate mockgen -source=collection.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidPath  = errors.New("invalid document path")
	ErrInvalidQuery = errors.New("invalid query")
)

type Op string

const (
	OpEqual        Op = "=="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
	StartAfter *Cursor
}

func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) validate() error {
	if q.Collection == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	for _, f := range q.Filters {
		switch f.Op {
		case OpEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		default:
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

type Document struct {
	ID   string
	Path string
	Data map[string]any

	native any
}

// Cursor marks a position in a query result. It is only meaningful for a
// query with the same ordering as the one that produced it.
type Cursor struct {
	id     string
	data   map[string]any
	native any
}

func (d Document) Cursor() *Cursor {
	return &Cursor{id: d.ID, data: d.Data, native: d.native}
}

// Decode copies the document fields into out, using `firestore` struct tags.
func (d Document) Decode(out any) error {
	return Decode(d.Data, out)
}

func Decode(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "firestore",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToTimeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("error creating decoder: %w", err)
	}

	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("error decoding document: %w", err)
	}
	return nil
}

func stringToTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	s := data.(string)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

type Subscription interface {
	Close() error
}

// Client is the remote collection client.
//
// Update merges top level fields into the document and creates it when it
// does not exist. Subscribe delivers the full result set of q on every change,
// starting with the current one, until the subscription is closed.
type Client interface {
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, path string) (*Document, error)
	Set(ctx context.Context, path string, data map[string]any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Increment(ctx context.Context, path string, field string, delta int64) error
	Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error)
	Close() error
}

// splitPath returns the collection and id of a document path. Document paths
// have an even number of segments.
func splitPath(path string) (string, string, error) {
	path = strings.Trim(path, "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	i := strings.LastIndex(path, "/")
	return path[:i], path[i+1:], nil
}

func Join(parts ...string) string {
	return strings.Join(parts, "/")
}
