package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const notifyChannel = "documents_changed"

// timeLayout is fixed width so that jsonb string ordering matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Postgres stores documents as JSONB rows keyed by path. See
// migrations/001_create_documents.up.sql.
type Postgres struct {
	db  *sqlx.DB
	dsn string
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to postgres: %w", err)
	}
	return NewPostgresWithDB(db, dsn), nil
}

func NewPostgresWithDB(db *sqlx.DB, dsn string) *Postgres {
	return &Postgres{db: db, dsn: dsn}
}

type documentRow struct {
	ID   string `db:"id"`
	Path string `db:"path"`
	Data []byte `db:"data"`
}

func (r documentRow) document() (Document, error) {
	var data map[string]any
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return Document{}, fmt.Errorf("error unmarshalling %s: %w", r.Path, err)
	}
	return Document{ID: r.ID, Path: r.Path, Data: data}, nil
}

// normalize converts values into their stored json shape.
func normalize(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(timeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(timeLayout)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	}
	return v
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(normalize(v))
	if err != nil {
		return "", fmt.Errorf("error marshalling document: %w", err)
	}
	return string(b), nil
}

var sqlOps = map[Op]string{
	OpEqual:        "=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
}

func buildSQL(q Query) (string, []any, error) {
	if err := q.validate(); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	args := []any{q.Collection}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sb.WriteString("SELECT id, path, data FROM documents WHERE collection = $1")

	for _, f := range q.Filters {
		val, err := marshal(f.Value)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&sb, " AND data->%s::text %s %s::jsonb", arg(f.Field), sqlOps[f.Op], arg(val))
	}

	desc := false
	for i, o := range q.OrderBy {
		if i > 0 && o.Desc != desc {
			return "", nil, fmt.Errorf("%w: mixed order directions", ErrInvalidQuery)
		}
		desc = o.Desc
	}
	dir, cmp := "ASC", ">"
	if desc {
		dir, cmp = "DESC", "<"
	}

	if q.StartAfter != nil {
		left := make([]string, 0, len(q.OrderBy)+1)
		right := make([]string, 0, len(q.OrderBy)+1)
		for _, o := range q.OrderBy {
			val, err := marshal(q.StartAfter.data[o.Field])
			if err != nil {
				return "", nil, err
			}
			left = append(left, "data->"+arg(o.Field)+"::text")
			right = append(right, arg(val)+"::jsonb")
		}
		left = append(left, "id")
		right = append(right, arg(q.StartAfter.id))
		fmt.Fprintf(&sb, " AND (%s) %s (%s)", strings.Join(left, ", "), cmp, strings.Join(right, ", "))
	}

	sb.WriteString(" ORDER BY ")
	for _, o := range q.OrderBy {
		fmt.Fprintf(&sb, "data->%s::text %s, ", arg(o.Field), dir)
	}
	sb.WriteString("id " + dir)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(q.Limit))
	}

	return sb.String(), args, nil
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Document, error) {
	query, args, err := buildSQL(q)
	if err != nil {
		return nil, err
	}

	var rows []documentRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error querying %s: %w", q.Collection, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (p *Postgres) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}

	var row documentRow
	err := p.db.GetContext(ctx, &row, "SELECT id, path, data FROM documents WHERE path = $1", strings.Trim(path, "/"))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting %s: %w", path, err)
	}

	doc, err := row.document()
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (p *Postgres) upsert(ctx context.Context, path string, data map[string]any, merge bool) error {
	col, id, err := splitPath(path)
	if err != nil {
		return err
	}
	val, err := marshal(data)
	if err != nil {
		return err
	}

	conflict := "EXCLUDED.data"
	if merge {
		conflict = "documents.data || EXCLUDED.data"
	}

	query := `
		INSERT INTO documents (path, collection, id, data, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, NOW())
		ON CONFLICT (path) DO UPDATE SET
			data = ` + conflict + `,
			updated_at = NOW()`

	if _, err := p.db.ExecContext(ctx, query, Join(col, id), col, id, val); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

func (p *Postgres) Set(ctx context.Context, path string, data map[string]any) error {
	return p.upsert(ctx, path, data, false)
}

func (p *Postgres) Update(ctx context.Context, path string, fields map[string]any) error {
	return p.upsert(ctx, path, fields, true)
}

func (p *Postgres) Increment(ctx context.Context, path string, field string, delta int64) error {
	if _, _, err := splitPath(path); err != nil {
		return err
	}

	query := `
		UPDATE documents SET
			data = jsonb_set(data, ARRAY[$2::text], to_jsonb(COALESCE((data->>$2::text)::numeric, 0) + $3)),
			updated_at = NOW()
		WHERE path = $1`

	res, err := p.db.ExecContext(ctx, query, strings.Trim(path, "/"), field, delta)
	if err != nil {
		return fmt.Errorf("error incrementing %s.%s: %w", path, field, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, path string) error {
	if _, _, err := splitPath(path); err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, "DELETE FROM documents WHERE path = $1", strings.Trim(path, "/")); err != nil {
		return fmt.Errorf("error deleting %s: %w", path, err)
	}
	return nil
}

// Subscribe listens on the documents_changed channel and re-runs q whenever a
// document in its collection changes.
func (p *Postgres) Subscribe(ctx context.Context, q Query, fn func([]Document)) (Subscription, error) {
	if _, _, err := buildSQL(q); err != nil {
		return nil, err
	}

	listener := pq.NewListener(p.dsn, 10*time.Second, time.Minute, nil)
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("error listening on %s: %w", notifyChannel, err)
	}

	initial, err := p.Query(ctx, q)
	if err != nil {
		listener.Close()
		return nil, err
	}
	fn(initial)

	ctx, cancel := context.WithCancel(ctx)
	sub := &postgresSubscription{cancel: cancel, listener: listener, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect, when notifications may have been lost
				if n != nil && n.Extra != q.Collection {
					continue
				}
				docs, err := p.Query(ctx, q)
				if err != nil {
					continue
				}
				fn(docs)
			case <-time.After(90 * time.Second):
				go listener.Ping()
			}
		}
	}()

	return sub, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

type postgresSubscription struct {
	cancel   context.CancelFunc
	listener *pq.Listener
	done     chan struct{}
	once     sync.Once
}

func (s *postgresSubscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		<-s.done
		err = s.listener.Close()
	})
	return err
}
