// Package app provides application initialization and dependency wiring.
//
// Setup builds every component in dependency order and returns an App whose
// Close releases them in reverse. Nothing here is lazily initialized: the
// Genkit instance, the storage backend, and the collaborator services are
// all constructed at startup and injected downward.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patooworld/omni/internal/api"
	"github.com/patooworld/omni/internal/auth"
	"github.com/patooworld/omni/internal/config"
	"github.com/patooworld/omni/internal/flows"
	"github.com/patooworld/omni/internal/profile"
	"github.com/patooworld/omni/internal/settings"
	"github.com/patooworld/omni/internal/storage"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	Flows  *flows.Service

	KV     storage.KeyValueStore
	DBPool *pgxpool.Pool // nil unless the postgres backend is active

	Auth     *auth.Service
	Profiles *profile.Store
	Settings *settings.Store

	Registry *api.Registry
	Server   *api.Server

	cleanups []func()
}

// Close releases resources in reverse construction order.
func (a *App) Close() error {
	a.logger().Info("shutting down application")
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
