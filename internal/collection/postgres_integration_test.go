//go:build integration

package collection

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
	store     *Postgres
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(filepath.Join(migrationsPath, "001_create_documents.up.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
	s.store = NewPostgresWithDB(db, connStr)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM documents")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestPagination() {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		s.Require().NoError(s.store.Set(s.ctx, fmt.Sprintf("novels/n%02d", i), map[string]any{
			"published": true,
			"createdAt": base.Add(time.Duration(i) * time.Minute),
		}))
	}

	q := Query{
		Collection: "novels",
		Filters:    []Filter{{Field: "published", Op: OpEqual, Value: true}},
		OrderBy:    []Order{{Field: "createdAt", Desc: true}},
		Limit:      6,
	}

	var seen []string
	for {
		docs, err := s.store.Query(s.ctx, q)
		s.Require().NoError(err)
		for _, d := range docs {
			seen = append(seen, d.ID)
		}
		if len(docs) < q.Limit {
			break
		}
		q.StartAfter = docs[len(docs)-1].Cursor()
	}

	s.Len(seen, 14)
	s.Equal("n13", seen[0])
	s.Equal("n00", seen[13])
}

func (s *PostgresIntegrationSuite) TestUpdateMergesAndIncrement() {
	s.Require().NoError(s.store.Update(s.ctx, "novels/n1", map[string]any{"title": "A", "views": 1}))
	s.Require().NoError(s.store.Update(s.ctx, "novels/n1", map[string]any{"genre": "Fantasy"}))
	s.Require().NoError(s.store.Increment(s.ctx, "novels/n1", "views", 2))

	doc, err := s.store.Get(s.ctx, "novels/n1")
	s.Require().NoError(err)
	s.Equal("A", doc.Data["title"])
	s.Equal("Fantasy", doc.Data["genre"])
	s.EqualValues(3, doc.Data["views"])

	s.ErrorIs(s.store.Increment(s.ctx, "novels/missing", "views", 1), ErrNotFound)

	s.Require().NoError(s.store.Delete(s.ctx, "novels/n1"))
	_, err = s.store.Get(s.ctx, "novels/n1")
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestSubscribe() {
	var mu sync.Mutex
	var last []Document
	calls := 0

	sub, err := s.store.Subscribe(s.ctx, Query{Collection: "memberships"}.Where("userId", OpEqual, "u1"), func(docs []Document) {
		mu.Lock()
		defer mu.Unlock()
		last = docs
		calls++
	})
	s.Require().NoError(err)
	defer sub.Close()

	s.Require().NoError(s.store.Set(s.ctx, "memberships/p1", map[string]any{"userId": "u1"}))

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2 && len(last) == 1
	}, 10*time.Second, 50*time.Millisecond)
}
