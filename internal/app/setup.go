package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patooworld/omni/db"
	"github.com/patooworld/omni/internal/api"
	"github.com/patooworld/omni/internal/auth"
	"github.com/patooworld/omni/internal/chat"
	"github.com/patooworld/omni/internal/config"
	"github.com/patooworld/omni/internal/flows"
	"github.com/patooworld/omni/internal/profile"
	"github.com/patooworld/omni/internal/session"
	"github.com/patooworld/omni/internal/settings"
	"github.com/patooworld/omni/internal/storage"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	svc, err := flows.New(flows.Config{
		Genkit: g,
		Logger: logger.With("component", "flows"),
		Search: flows.SearchConfig{APIKey: cfg.TavilyAPIKey},
	})
	if err != nil {
		return nil, fmt.Errorf("creating flow service: %w", err)
	}
	a.Flows = svc

	kv, pool, cleanup, err := provideStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.KV = kv
	a.DBPool = pool
	if cleanup != nil {
		a.cleanups = append(a.cleanups, cleanup)
	}

	authSvc, err := auth.New(auth.Config{
		Store:     kv,
		Logger:    logger.With("component", "auth"),
		JWTSecret: cfg.JWTSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("creating auth service: %w", err)
	}
	a.Auth = authSvc

	a.Profiles = profile.NewStore(kv)
	a.Settings = settings.NewStore(kv)

	a.Registry = api.NewRegistry(controllerFactory(kv, svc, logger))

	server, err := api.NewServer(api.ServerConfig{
		Logger:             logger.With("component", "api"),
		Auth:               authSvc,
		Controllers:        a.Registry,
		Profiles:           a.Profiles,
		Settings:           a.Settings,
		TrustProxy:         cfg.TrustProxy,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("creating api server: %w", err)
	}
	a.Server = server

	return a, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai provider")
	}
	return g, nil
}

// provideStorage builds the configured key-value backend. The pool return
// is non-nil only for the postgres backend.
func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.KeyValueStore, *pgxpool.Pool, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		logger.Info("using in-memory storage, data will not survive restarts")
		return storage.NewMemory(), nil, nil, nil

	case config.BackendFile:
		fs, err := storage.NewFile(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("creating file storage: %w", err)
		}
		logger.Info("using file storage", "dir", cfg.DataDir)
		return fs, nil, nil, nil

	case config.BackendPostgres:
		pool, cleanup, err := provideDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("using postgres storage",
			"host", cfg.PostgresHost, "database", cfg.PostgresDBName)
		return storage.NewPostgres(pool), pool, cleanup, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidStorageBackend, cfg.StorageBackend)
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// controllerFactory builds per-user chat controllers for the registry. Each
// controller restores the user's durable history on first use.
func controllerFactory(kv storage.KeyValueStore, svc *flows.Service, logger *slog.Logger) api.ControllerFactory {
	return func(ctx context.Context, userID uuid.UUID) (*chat.Controller, error) {
		persister := session.NewPersister(kv, userID.String(),
			logger.With("component", "persister", "user_id", userID))

		c, err := chat.New(chat.Config{
			Persister: persister,
			Chat:      svc,
			Images:    svc,
			Transform: svc,
			Speech:    svc,
			Logger:    logger.With("component", "chat", "user_id", userID),
		})
		if err != nil {
			return nil, fmt.Errorf("creating controller: %w", err)
		}
		if err := c.Bootstrap(ctx); err != nil {
			return nil, fmt.Errorf("bootstrapping controller: %w", err)
		}
		return c, nil
	}
}
