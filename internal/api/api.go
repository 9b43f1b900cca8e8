package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/config"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/membership"
	"github.com/oseayemenre/novelnest/internal/models"
	"github.com/oseayemenre/novelnest/internal/novels"
	"github.com/oseayemenre/novelnest/internal/payment"
	"github.com/oseayemenre/novelnest/internal/reader"
)

type NovelService interface {
	Create(ctx context.Context, input novels.CreateInput, cover io.Reader) (*models.Novel, error)
	Get(ctx context.Context, id string) (*models.Novel, error)
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
	AddChapter(ctx context.Context, novelID string, chapter models.Chapter) (*models.Chapter, error)
	RecordView(novelID string)
}

type ChapterResolver interface {
	ListChapters(ctx context.Context, novelID string) []models.ChapterSummary
	GetChapterContent(ctx context.Context, novelID string, chapterID string) (*models.Chapter, error)
}

type SearchService interface {
	Search(ctx context.Context, term string) ([]models.Novel, error)
}

type AuthService interface {
	Register(ctx context.Context, email, displayName, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	GoogleSignIn(ctx context.Context, user goth.User) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type MembershipService interface {
	Activate(ctx context.Context, p membership.Purchase) (*models.Membership, error)
}

type SessionRegistry interface {
	Session(deviceID string) *reader.Session
}

type Dependencies struct {
	Collection  collection.Client
	Sessions    SessionRegistry
	CookieStore sessions.Store
	Novels      NovelService
	Chapters    ChapterResolver
	Search      SearchService
	Auth        AuthService
	Memberships MembershipService
	Payments    payment.Provider
}

type Api struct {
	router      *chi.Mux
	logger      logger.Logger
	config      *config.Config
	collection  collection.Client
	sessions    SessionRegistry
	cookieStore sessions.Store
	novels      NovelService
	chapters    ChapterResolver
	search      SearchService
	auth        AuthService
	memberships MembershipService
	payments    payment.Provider
}

func New(router *chi.Mux, logger logger.Logger, config *config.Config, deps Dependencies) *Api {
	return &Api{
		router:      router,
		logger:      logger,
		config:      config,
		collection:  deps.Collection,
		sessions:    deps.Sessions,
		cookieStore: deps.CookieStore,
		novels:      deps.Novels,
		chapters:    deps.Chapters,
		search:      deps.Search,
		auth:        deps.Auth,
		memberships: deps.Memberships,
		payments:    deps.Payments,
	}
}

func (a *Api) RegisterRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(a.Recoverer)

	a.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	a.router.Get("/swagger/*", httpSwagger.WrapHandler)

	a.router.Route("/api/v1", func(r chi.Router) {
		r.Use(a.LoggingMiddleware)
		r.Post("/webhook", a.HandleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(a.DeviceSession)

			r.Route("/auth", func(r chi.Router) {
				r.Route("/google", func(r chi.Router) {
					r.Get("/", a.HandleGoogleSignIn)
					r.Get("/callback", a.HandleGoogleSignInCallback)
				})

				r.Post("/register", a.HandleRegister)
				r.Post("/login", a.HandleLogin)
				r.Post("/logout", a.HandleLogout)
				r.Post("/refresh-token", a.HandleRefreshToken)
			})

			r.With(a.RequireUser).Get("/users/me", a.HandleGetProfile)

			r.Route("/feed", func(r chi.Router) {
				r.Get("/", a.HandleGetFeedState)
				r.Post("/", a.HandleLoadFeed)
				r.Post("/next", a.HandleLoadNextPage)
				r.Post("/retry", a.HandleRetryFeed)
				r.Get("/ws", a.HandleFeedSocket)
			})

			r.Route("/novels", func(r chi.Router) {
				r.With(a.CheckPermission(PermissionCreateNovels)).Post("/", a.HandleCreateNovel)

				r.Route("/{novelId}", func(r chi.Router) {
					r.Get("/", a.HandleGetNovel)
					r.With(a.CheckPermission(PermissionPublishNovels)).Patch("/publish", a.HandlePublishNovel)
					r.With(a.CheckPermission(PermissionDeleteNovels)).Delete("/", a.HandleDeleteNovel)
					r.Put("/bookmark", a.HandleToggleBookmark)

					r.Route("/chapters", func(r chi.Router) {
						r.Get("/", a.HandleGetChapters)
						r.With(a.CheckPermission(PermissionAddChapters)).Post("/", a.HandleAddChapter)
						r.Get("/{chapterId}", a.HandleGetChapter)
						r.Get("/{chapterId}/progress", a.HandleGetProgress)
						r.Put("/{chapterId}/progress", a.HandleUpdateProgress)
					})
				})
			})

			r.Get("/bookmarks", a.HandleGetBookmarks)

			r.Route("/history", func(r chi.Router) {
				r.Get("/", a.HandleGetHistory)
				r.Post("/", a.HandleAddToHistory)
			})

			r.Route("/membership", func(r chi.Router) {
				r.Get("/", a.HandleGetMembership)
				r.With(a.RequireUser).Post("/checkout", a.HandleCheckout)
				r.With(a.RequireUser).Post("/confirm", a.HandleConfirmMembership)
			})

			r.Route("/search", func(r chi.Router) {
				r.Get("/", a.HandleSearch)
				r.Get("/history", a.HandleGetSearchHistory)
				r.Get("/ws", a.HandleSearchSocket)
			})

			r.Route("/preferences", func(r chi.Router) {
				r.Get("/", a.HandleGetPreferences)
				r.Put("/", a.HandleUpdatePreferences)
			})
		})
	})
}
