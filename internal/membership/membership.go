// Package membership decides whether a reader may open premium chapters.
package membership

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

const membershipsCollection = "memberships"

type State int

const (
	Loading State = iota
	Unauthenticated
	NoMembership
	Active
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Unauthenticated:
		return "unauthenticated"
	case NoMembership:
		return "no_membership"
	case Active:
		return "active"
	}
	return "unknown"
}

// Gate follows the signed-in user's membership records through a realtime
// subscription. Expiry is evaluated when the state is read.
type Gate struct {
	client collection.Client
	logger logger.Logger
	bypass bool
	now    func() time.Time

	mu           sync.Mutex
	resolved     bool
	userID       string
	loaded       bool
	memberships  []models.Membership
	sub          collection.Subscription
	subscription uint64
}

func NewGate(client collection.Client, logger logger.Logger, bypass bool) *Gate {
	return &Gate{client: client, logger: logger, bypass: bypass, now: time.Now}
}

func (g *Gate) SetUser(ctx context.Context, userID string) error {
	g.mu.Lock()
	old := g.sub
	g.sub = nil
	g.subscription++
	token := g.subscription
	g.resolved = true
	g.userID = userID
	g.loaded = false
	g.memberships = nil
	g.mu.Unlock()

	if old != nil {
		old.Close()
	}

	q := collection.Query{Collection: membershipsCollection}.Where("userId", collection.OpEqual, userID)

	sub, err := g.client.Subscribe(ctx, q, func(docs []collection.Document) {
		g.apply(token, docs)
	})
	if err != nil {
		g.logger.Warn(fmt.Sprintf("error subscribing to memberships: %v", err), "service", "MembershipGate", "user", userID)
		g.apply(token, nil)
		return fmt.Errorf("error subscribing to memberships: %w", err)
	}

	g.mu.Lock()
	if token != g.subscription {
		g.mu.Unlock()
		sub.Close()
		return nil
	}
	g.sub = sub
	g.mu.Unlock()

	return nil
}

func (g *Gate) apply(token uint64, docs []collection.Document) {
	memberships := make([]models.Membership, 0, len(docs))
	for _, d := range docs {
		var m models.Membership
		if err := d.Decode(&m); err != nil {
			g.logger.Warn(fmt.Sprintf("skipping malformed membership %s: %v", d.ID, err), "service", "MembershipGate")
			continue
		}
		if m.PaymentID == "" {
			m.PaymentID = d.ID
		}
		memberships = append(memberships, m)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if token != g.subscription {
		return
	}
	g.memberships = memberships
	g.loaded = true
}

// SetAnonymous releases the subscription.
func (g *Gate) SetAnonymous() {
	g.mu.Lock()
	old := g.sub
	g.sub = nil
	g.subscription++
	g.resolved = true
	g.userID = ""
	g.loaded = false
	g.memberships = nil
	g.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case !g.resolved:
		return Loading
	case g.userID == "":
		return Unauthenticated
	case !g.loaded:
		return Loading
	}

	now := g.now()
	for _, m := range g.memberships {
		if m.ActiveAt(now) {
			return Active
		}
	}
	return NoMembership
}

// Current returns the membership with the latest expiry, if any.
func (g *Gate) Current() *models.Membership {
	g.mu.Lock()
	defer g.mu.Unlock()

	var latest *models.Membership
	for i := range g.memberships {
		m := g.memberships[i]
		if latest == nil || m.ExpiryDate.After(latest.ExpiryDate) {
			latest = &m
		}
	}
	return latest
}

func (g *Gate) Allows() bool {
	if g.bypass {
		return true
	}
	return g.State() == Active
}

func (g *Gate) Close() {
	g.mu.Lock()
	old := g.sub
	g.sub = nil
	g.subscription++
	g.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

var ErrInvalidPurchase = errors.New("invalid purchase")

type Purchase struct {
	UserID      string
	PaymentID   string
	Amount      int64
	Currency    string
	PurchasedAt time.Time
}

type Service struct {
	client collection.Client
	logger logger.Logger
}

func NewService(client collection.Client, logger logger.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Activate records a one year membership for a confirmed payment. The record
// is keyed by payment id, so confirming the same payment twice is harmless.
func (s *Service) Activate(ctx context.Context, p Purchase) (*models.Membership, error) {
	if p.UserID == "" || p.PaymentID == "" {
		return nil, fmt.Errorf("%w: user and payment id are required", ErrInvalidPurchase)
	}
	if p.PurchasedAt.IsZero() {
		return nil, fmt.Errorf("%w: purchase time is required", ErrInvalidPurchase)
	}

	m := &models.Membership{
		UserID:       p.UserID,
		PaymentID:    p.PaymentID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		PurchaseDate: p.PurchasedAt.UTC(),
		ExpiryDate:   p.PurchasedAt.UTC().AddDate(1, 0, 0),
	}

	if err := s.client.Set(ctx, collection.Join(membershipsCollection, p.PaymentID), m.Fields()); err != nil {
		return nil, fmt.Errorf("error saving membership: %w", err)
	}

	s.logger.Info("membership activated", "service", "MembershipService", "user", p.UserID, "payment", p.PaymentID)
	return m, nil
}
