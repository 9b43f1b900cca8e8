package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	_ "github.com/oseayemenre/novelnest/docs"
	"github.com/oseayemenre/novelnest/internal/api"
	"github.com/oseayemenre/novelnest/internal/auth"
	"github.com/oseayemenre/novelnest/internal/catalog"
	"github.com/oseayemenre/novelnest/internal/chapters"
	"github.com/oseayemenre/novelnest/internal/events"
	"github.com/oseayemenre/novelnest/internal/localstore"
	"github.com/oseayemenre/novelnest/internal/membership"
	"github.com/oseayemenre/novelnest/internal/novels"
	"github.com/oseayemenre/novelnest/internal/payment"
	"github.com/oseayemenre/novelnest/internal/reader"
	"github.com/oseayemenre/novelnest/internal/search"
)

const reapInterval = time.Minute

func HTTPCommand(ctx context.Context) *cobra.Command {
	var addr int
	var env string
	var configPath string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "run novelnest http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			cfg, err := loadConfig(configPath, env)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Env, "http")
			if err != nil {
				return err
			}

			client, err := openCollection(ctx, cfg)
			if err != nil {
				return err
			}
			defer client.Close()
			logger.Info("collection connected", "backend", cfg.CollectionBackend)

			if err := os.MkdirAll(cfg.LocalStorePath, 0o755); err != nil {
				return fmt.Errorf("error creating local store directory: %v", err)
			}
			local, err := localstore.NewPebbleStore(cfg.LocalStorePath)
			if err != nil {
				return err
			}
			defer local.Close()

			objectStore, err := openObjectStore(ctx, cfg)
			if err != nil {
				return err
			}

			var counter novels.ViewCounter = novels.NewDirectCounter(client)
			if cfg.RabbitMQConn != "" {
				publisher, err := events.NewPublisher(cfg.RabbitMQConn, cfg.RabbitMQQueue, logger)
				if err != nil {
					return err
				}
				defer publisher.Close()
				counter = publisher
				logger.Info("view events queued", "queue", cfg.RabbitMQQueue)
			}

			novelService := novels.NewService(client, objectStore, counter, logger)
			defer novelService.Wait()

			cookieStore := auth.NewSessionStore(cfg.SessionSecret, cfg.SessionSecure)
			auth.SetupGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.Host, cookieStore)

			registry := reader.NewRegistry(client, local, logger, reader.Config{
				Feed: catalog.Config{
					PageSize:    cfg.FeedPageSize,
					Timeout:     cfg.FeedTimeout,
					MaxAttempts: cfg.FeedMaxAttempts,
					BackoffStep: cfg.FeedBackoffStep,
				},
				ProgressDebounce: cfg.ProgressDebounce,
				MembershipBypass: cfg.MembershipBypass,
				TTL:              cfg.SessionTTL,
			})
			defer registry.Close()

			router := chi.NewRouter()
			api.New(router, logger, cfg, api.Dependencies{
				Collection:  client,
				Sessions:    registry,
				CookieStore: cookieStore,
				Novels:      novelService,
				Chapters:    chapters.New(client, logger),
				Search:      search.NewService(client, logger),
				Auth:        auth.NewService(client, logger),
				Memberships: membership.NewService(client, logger),
				Payments:    payment.NewStripe(cfg.StripeSecret, cfg.StripeWebhookSecret),
			}).RegisterRoutes()

			httpServer := &http.Server{
				Addr:        fmt.Sprintf(":%d", addr),
				Handler:     router,
				IdleTimeout: 15 * time.Minute,
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("server startup", "status", fmt.Sprintf("server starting on port: %d", addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})

			g.Go(func() error {
				registry.Run(gctx, reapInterval)
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				logger.Info("server shutdown", "status", "kill signal recieved")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()

				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("error shutting down server: %v", err)
				}
				return nil
			})

			if err := g.Wait(); err != nil {
				return err
			}

			logger.Info("server shutdown", "status", "shutdown complete...")
			return nil
		},
	}

	cmd.Flags().IntVarP(&addr, "addr", "a", 8080, "server address")
	cmd.Flags().StringVarP(&env, "env", "e", "", "current working environment, overrides APP_ENV")
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the env file")

	return cmd
}
