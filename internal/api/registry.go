package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/chat"
)

// ControllerFactory builds and bootstraps a chat controller for a user.
type ControllerFactory func(ctx context.Context, userID uuid.UUID) (*chat.Controller, error)

// Registry materializes one chat controller per user on demand and caches
// it for the lifetime of the server. Each user's controller serializes that
// user's mutations, so handler goroutines never race on session state.
//
// Materialization runs outside the registry lock: the factory restores the
// user's history from durable storage, and one user's slow load must not
// block controller resolution for everyone else. Concurrent first requests
// for the same user share a single factory call.
type Registry struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*registryEntry
	factory ControllerFactory
}

type registryEntry struct {
	once       sync.Once
	controller *chat.Controller
	err        error
}

// NewRegistry creates a controller registry.
func NewRegistry(factory ControllerFactory) *Registry {
	return &Registry{
		entries: make(map[uuid.UUID]*registryEntry),
		factory: factory,
	}
}

// Controller returns the user's controller, creating and bootstrapping it on
// first use.
func (r *Registry) Controller(ctx context.Context, userID uuid.UUID) (*chat.Controller, error) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if !ok {
		e = &registryEntry{}
		r.entries[userID] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.controller, e.err = r.factory(ctx, userID)
	})
	if e.err != nil {
		// Failed materialization is not cached; the next request retries.
		r.mu.Lock()
		if r.entries[userID] == e {
			delete(r.entries, userID)
		}
		r.mu.Unlock()
		return nil, fmt.Errorf("creating controller for user %s: %w", userID, e.err)
	}
	return e.controller, nil
}

// Evict drops the cached controller for a user. Used when an account signs
// out everywhere; the next request rebuilds from durable storage.
func (r *Registry) Evict(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
}
