package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/config"
	"github.com/oseayemenre/novelnest/internal/localstore"
	"github.com/oseayemenre/novelnest/internal/membership"
	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/novels"
	"github.com/oseayemenre/novelnest/internal/payment"
	"github.com/oseayemenre/novelnest/internal/reader"
)

const testSecret = "secret"

type testLogger struct{}

func (l *testLogger) Debug(msg string, args ...any) {}
func (l *testLogger) Info(msg string, args ...any)  {}
func (l *testLogger) Error(msg string, args ...any) {}
func (l *testLogger) Warn(msg string, args ...any)  {}

type testNovelService struct {
	createFunc       func(ctx context.Context, input novels.CreateInput, cover io.Reader) (*models.Novel, error)
	getFunc          func(ctx context.Context, id string) (*models.Novel, error)
	setPublishedFunc func(ctx context.Context, id string, published bool) error
	deleteFunc       func(ctx context.Context, id string) error
	addChapterFunc   func(ctx context.Context, novelID string, chapter models.Chapter) (*models.Chapter, error)
	viewed           []string
}

func (s *testNovelService) Create(ctx context.Context, input novels.CreateInput, cover io.Reader) (*models.Novel, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, input, cover)
	}
	return &models.Novel{ID: "novel-id", Title: input.Title}, nil
}

func (s *testNovelService) Get(ctx context.Context, id string) (*models.Novel, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, id)
	}
	return &models.Novel{ID: id, Published: true}, nil
}

func (s *testNovelService) SetPublished(ctx context.Context, id string, published bool) error {
	if s.setPublishedFunc != nil {
		return s.setPublishedFunc(ctx, id, published)
	}
	return nil
}

func (s *testNovelService) Delete(ctx context.Context, id string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, id)
	}
	return nil
}

func (s *testNovelService) AddChapter(ctx context.Context, novelID string, chapter models.Chapter) (*models.Chapter, error) {
	if s.addChapterFunc != nil {
		return s.addChapterFunc(ctx, novelID, chapter)
	}
	chapter.ID = "chapter-id"
	return &chapter, nil
}

func (s *testNovelService) RecordView(novelID string) {
	s.viewed = append(s.viewed, novelID)
}

type testChapterResolver struct {
	listChaptersFunc      func(ctx context.Context, novelID string) []models.ChapterSummary
	getChapterContentFunc func(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error)
}

func (c *testChapterResolver) ListChapters(ctx context.Context, novelID string) []models.ChapterSummary {
	if c.listChaptersFunc != nil {
		return c.listChaptersFunc(ctx, novelID)
	}
	return nil
}

func (c *testChapterResolver) GetChapterContent(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error) {
	if c.getChapterContentFunc != nil {
		return c.getChapterContentFunc(ctx, novelID, chapterID)
	}
	return &models.Chapter{ID: chapterID, Number: 1, Title: "One", Content: "text"}, nil
}

type testSearchService struct {
	searchFunc func(ctx context.Context, term string) ([]models.Novel, error)
}

func (s *testSearchService) Search(ctx context.Context, term string) ([]models.Novel, error) {
	if s.searchFunc != nil {
		return s.searchFunc(ctx, term)
	}
	return []models.Novel{{ID: "n1", Title: term}}, nil
}

type testAuthService struct {
	registerFunc     func(ctx context.Context, email, displayName, password string) (*models.User, error)
	loginFunc        func(ctx context.Context, email, password string) (*models.User, error)
	googleSignInFunc func(ctx context.Context, user goth.User) (*models.User, error)
	getUserFunc      func(ctx context.Context, id string) (*models.User, error)
}

func (s *testAuthService) Register(ctx context.Context, email, displayName, password string) (*models.User, error) {
	if s.registerFunc != nil {
		return s.registerFunc(ctx, email, displayName, password)
	}
	return &models.User{ID: "user-id", Email: email, DisplayName: displayName}, nil
}

func (s *testAuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	if s.loginFunc != nil {
		return s.loginFunc(ctx, email, password)
	}
	return &models.User{ID: "user-id", Email: email}, nil
}

func (s *testAuthService) GoogleSignIn(ctx context.Context, user goth.User) (*models.User, error) {
	if s.googleSignInFunc != nil {
		return s.googleSignInFunc(ctx, user)
	}
	return &models.User{ID: "user-id", Email: user.Email}, nil
}

func (s *testAuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if s.getUserFunc != nil {
		return s.getUserFunc(ctx, id)
	}
	return &models.User{ID: id, Email: "test@test.com", Role: models.RoleReader}, nil
}

type testMembershipService struct {
	activateFunc func(ctx context.Context, p membership.Purchase) (*models.Membership, error)
	activated    []membership.Purchase
}

func (s *testMembershipService) Activate(ctx context.Context, p membership.Purchase) (*models.Membership, error) {
	s.activated = append(s.activated, p)
	if s.activateFunc != nil {
		return s.activateFunc(ctx, p)
	}
	return &models.Membership{UserID: p.UserID, PaymentID: p.PaymentID, ExpiryDate: p.PurchasedAt.AddDate(1, 0, 0)}, nil
}

type testPaymentProvider struct {
	newCheckoutFunc  func(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error)
	confirmFunc      func(ctx context.Context, token string) (*payment.Confirmation, error)
	parseWebhookFunc func(payload []byte, signature string) (*payment.Confirmation, error)
}

func (p *testPaymentProvider) NewCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	if p.newCheckoutFunc != nil {
		return p.newCheckoutFunc(ctx, req)
	}
	return &payment.Checkout{ID: "cs_test", URL: "https://checkout.test/cs_test"}, nil
}

func (p *testPaymentProvider) Confirm(ctx context.Context, token string) (*payment.Confirmation, error) {
	if p.confirmFunc != nil {
		return p.confirmFunc(ctx, token)
	}
	return &payment.Confirmation{UserID: "user-id", PaymentID: token, Amount: 999, Currency: "usd", PaidAt: time.Now()}, nil
}

func (p *testPaymentProvider) ParseWebhook(payload []byte, signature string) (*payment.Confirmation, error) {
	if p.parseWebhookFunc != nil {
		return p.parseWebhookFunc(payload, signature)
	}
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Host:               "http://localhost:8080",
		JwtSecret:          testSecret,
		MembershipPrice:    999,
		MembershipCurrency: "usd",
		FeedPageSize:       6,
		SearchDebounce:     10 * time.Millisecond,
	}
}

// newTestApi returns an Api over an in-memory collection with hand fakes for
// every service. Callers override fields as needed.
func newTestApi(t *testing.T) (*Api, *collection.Memory, *reader.Registry) {
	t.Helper()

	client := collection.NewMemory()
	registry := reader.NewRegistry(client, localstore.NewMemory(), &testLogger{}, reader.Config{
		ProgressDebounce: time.Hour,
	})
	t.Cleanup(registry.Close)

	a := &Api{
		logger:      &testLogger{},
		config:      testConfig(),
		collection:  client,
		sessions:    registry,
		cookieStore: sessions.NewCookieStore([]byte(testSecret)),
		novels:      &testNovelService{},
		chapters:    &testChapterResolver{},
		search:      &testSearchService{},
		auth:        &testAuthService{},
		memberships: &testMembershipService{},
		payments:    &testPaymentProvider{},
	}
	return a, client, registry
}

// withReader attaches the device session and, when userID is set, the
// signed-in user to the request, as DeviceSession would.
func withReader(t *testing.T, r *http.Request, registry *reader.Registry, deviceID string, userID string) *http.Request {
	t.Helper()

	session := registry.Session(deviceID)
	if err := session.Attach(r.Context(), userID); err != nil {
		t.Fatalf("error attaching user: %v", err)
	}

	ctx := context.WithValue(r.Context(), readerKey, session)
	if userID != "" {
		ctx = context.WithValue(ctx, userKey, userID)
	}
	return r.WithContext(ctx)
}

func seedNovels(t *testing.T, client collection.Client, n int) {
	t.Helper()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		novel := models.Novel{
			Title:     fmt.Sprintf("Novel %02d", i),
			Status:    models.StatusOngoing,
			Published: true,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := client.Set(context.Background(), fmt.Sprintf("novels/n%02d", i), novel.Fields()); err != nil {
			t.Fatalf("error seeding novel: %v", err)
		}
	}
}

func withURLParams(r *http.Request, pairs ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		rctx.URLParams.Add(pairs[i], pairs[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
