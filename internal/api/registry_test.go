package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/chat"
	"github.com/patooworld/omni/internal/log"
	"github.com/patooworld/omni/internal/session"
	"github.com/patooworld/omni/internal/storage"
)

// buildTestController constructs a bootstrapped controller over its own
// in-memory store, the way the production factory does.
func buildTestController(ctx context.Context, userID uuid.UUID) (*chat.Controller, error) {
	svc := &stubFlows{}
	c, err := chat.New(chat.Config{
		Persister: session.NewPersister(storage.NewMemory(), userID.String(), log.NewNop()),
		Chat:      svc,
		Images:    svc,
		Transform: svc,
		Speech:    svc,
		Logger:    log.NewNop(),
	})
	if err != nil {
		return nil, err
	}
	if err := c.Bootstrap(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func TestRegistryCachesPerUser(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(func(ctx context.Context, userID uuid.UUID) (*chat.Controller, error) {
		calls.Add(1)
		return buildTestController(ctx, userID)
	})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	first, err := reg.Controller(ctx, alice)
	if err != nil {
		t.Fatalf("Controller() error = %v", err)
	}
	second, err := reg.Controller(ctx, alice)
	if err != nil {
		t.Fatalf("Controller() error = %v", err)
	}
	if first != second {
		t.Error("Controller() returned a different instance for the same user")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("factory calls = %d, want 1", got)
	}

	other, err := reg.Controller(ctx, bob)
	if err != nil {
		t.Fatalf("Controller() error = %v", err)
	}
	if other == first {
		t.Error("Controller() shared an instance across users")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("factory calls = %d, want 2", got)
	}
}

func TestRegistryFactoryErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(func(ctx context.Context, userID uuid.UUID) (*chat.Controller, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("storage unavailable")
		}
		return buildTestController(ctx, userID)
	})
	ctx := context.Background()
	userID := uuid.New()

	if _, err := reg.Controller(ctx, userID); err == nil {
		t.Fatal("Controller() error = nil, want factory failure")
	}
	if _, err := reg.Controller(ctx, userID); err != nil {
		t.Fatalf("Controller() retry error = %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("factory calls = %d, want 2", got)
	}
}

func TestRegistrySlowBuildDoesNotBlockOtherUsers(t *testing.T) {
	slowUser, fastUser := uuid.New(), uuid.New()
	slowEntered := make(chan struct{})
	release := make(chan struct{})

	reg := NewRegistry(func(ctx context.Context, userID uuid.UUID) (*chat.Controller, error) {
		if userID == slowUser {
			close(slowEntered)
			<-release
		}
		return buildTestController(ctx, userID)
	})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := reg.Controller(ctx, slowUser); err != nil {
			t.Errorf("Controller(slow) error = %v", err)
		}
	}()

	<-slowEntered

	// Another user resolves while the slow build is still in flight.
	resolved := make(chan error, 1)
	go func() {
		_, err := reg.Controller(ctx, fastUser)
		resolved <- err
	}()
	select {
	case err := <-resolved:
		if err != nil {
			t.Fatalf("Controller(fast) error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Controller(fast) blocked behind another user's build")
	}

	close(release)
	<-done
}
