package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/oseayemenre/novelnest/internal/collection"
	"github.com/oseayemenre/novelnest/internal/config"
	"github.com/oseayemenre/novelnest/internal/logger"
	"github.com/oseayemenre/novelnest/internal/objectstore"
)

const defaultConfigPath = "internal/config/.env"

func newLogger(env string, component string) (*logger.SlogLogger, error) {
	var handler slog.Handler

	switch env {
	case "dev":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	case "prod":
		handler = slog.NewJSONHandler(os.Stderr, nil)
	default:
		return nil, fmt.Errorf("environment can only be dev or prod")
	}

	baseLogger := slog.New(handler).With(
		slog.String("app", "novelnest"),
		slog.String("component", component),
		slog.String("runtime", runtime.Version()),
		slog.String("os", runtime.GOOS),
		slog.String("architecture", runtime.GOARCH),
		slog.String("version", "1.0"),
	)

	return logger.NewSlogLogger(baseLogger), nil
}

// loadConfig reads the env file and lets the --env flag override APP_ENV.
func loadConfig(path string, env string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if env != "" {
		cfg.Env = env
	}
	return cfg, nil
}

func openCollection(ctx context.Context, cfg *config.Config) (collection.Client, error) {
	switch cfg.CollectionBackend {
	case "firestore":
		return collection.NewFirestore(ctx, cfg.FirestoreProject, cfg.FirestoreCredsFile)
	case "postgres":
		return collection.NewPostgres(ctx, cfg.DbConn)
	default:
		return collection.NewMemory(), nil
	}
}

func openObjectStore(ctx context.Context, cfg *config.Config) (objectstore.ObjectStore, error) {
	switch cfg.ObjectStoreBackend {
	case "s3":
		return objectstore.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
	case "cloudinary":
		return objectstore.NewCloudinaryStore(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret)
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.ObjectStoreBackend)
	}
}
