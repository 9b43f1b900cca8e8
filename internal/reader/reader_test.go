package reader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/localstore"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/membership"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRegistry(client collection.Client, local localstore.Store) *Registry {
	return NewRegistry(client, local, logger.Nop{}, Config{
		ProgressDebounce: time.Hour,
		TTL:              time.Minute,
	})
}

func TestSessionsAreScopedPerDevice(t *testing.T) {
	local := localstore.NewMemory()
	r := newRegistry(collection.NewMemory(), local)
	defer r.Close()

	a := r.Session("device-a")
	b := r.Session("device-b")
	require.Same(t, a, r.Session("device-a"))
	assert.Equal(t, 2, r.Len())

	a.Reading.ToggleBookmark("n1")
	assert.True(t, a.Reading.IsBookmarked("n1"))
	assert.False(t, b.Reading.IsBookmarked("n1"))

	raw, err := local.Get("device-a:" + localstore.KeyBookmarks)
	require.NoError(t, err)
	assert.JSONEq(t, `["n1"]`, raw)

	assert.Equal(t, membership.Unauthenticated, a.Gate.State())
}

func TestAttachFollowsMembership(t *testing.T) {
	ctx := context.Background()
	client := collection.NewMemory()
	r := newRegistry(client, localstore.NewMemory())
	defer r.Close()

	err := client.Set(ctx, "memberships/pay_1", map[string]any{
		"userId":       "u1",
		"paymentId":    "pay_1",
		"purchaseDate": time.Now().Add(-time.Hour),
		"expiryDate":   time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	s := r.Session("device")
	require.NoError(t, s.Attach(ctx, "u1"))
	assert.Equal(t, "u1", s.UserID())
	assert.Equal(t, "u1", s.Reading.UserID())
	assert.Equal(t, membership.Active, s.Gate.State())
	assert.Equal(t, 1, client.Subscribers())

	require.NoError(t, s.Attach(ctx, "u1"))
	assert.Equal(t, 1, client.Subscribers())

	require.NoError(t, s.Attach(ctx, ""))
	assert.Equal(t, membership.Unauthenticated, s.Gate.State())
	assert.Empty(t, s.Reading.UserID())
	assert.Equal(t, 0, client.Subscribers())
}

type flakyClient struct {
	collection.Client
	failures int
}

func (c *flakyClient) Get(ctx context.Context, path string) (*collection.Document, error) {
	if c.failures > 0 {
		c.failures--
		return nil, errors.New("unavailable")
	}
	return c.Client.Get(ctx, path)
}

func TestAttachRetriesFailedRemoteRead(t *testing.T) {
	ctx := context.Background()
	store := collection.NewMemory()
	client := &flakyClient{Client: store, failures: 1}
	r := newRegistry(client, localstore.NewMemory())
	defer r.Close()

	require.NoError(t, store.Set(ctx, "users/u1", map[string]any{
		"bookmarks": []string{"remote"},
	}))

	s := r.Session("device")
	require.Error(t, s.Attach(ctx, "u1"))
	assert.False(t, s.Reading.Loaded())

	s.Reading.ToggleBookmark("local")
	s.Reading.Flush(ctx)

	doc, err := store.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"remote"}, doc.Data["bookmarks"])

	require.NoError(t, s.Attach(ctx, "u1"))
	assert.True(t, s.Reading.Loaded())
	assert.Equal(t, []string{"remote"}, s.Reading.Bookmarks())
}

func TestReapClosesIdleSessions(t *testing.T) {
	ctx := context.Background()
	client := collection.NewMemory()
	r := newRegistry(client, localstore.NewMemory())
	defer r.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	idle := r.Session("idle")
	require.NoError(t, idle.Attach(ctx, "u1"))
	r.Session("busy")

	now = now.Add(45 * time.Second)
	r.Session("busy")

	now = now.Add(30 * time.Second)
	assert.Equal(t, 1, r.Reap())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, client.Subscribers())

	require.NoError(t, idle.Attach(ctx, "u2"))
	assert.Equal(t, 0, client.Subscribers())
}

func TestCloseFlushesPendingWrites(t *testing.T) {
	ctx := context.Background()
	client := collection.NewMemory()
	r := newRegistry(client, localstore.NewMemory())

	s := r.Session("device")
	require.NoError(t, s.Attach(ctx, "u1"))
	s.Reading.ToggleBookmark("n1")

	r.Close()
	assert.Equal(t, 0, r.Len())

	doc, err := client.Get(ctx, "users/u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, doc.Data["bookmarks"])
}

func TestRunStopsWithContext(t *testing.T) {
	r := newRegistry(collection.NewMemory(), localstore.NewMemory())
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reaper did not stop")
	}
}
