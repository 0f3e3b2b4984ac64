package profile

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/storage"
)

func TestGetMissingReturnsZeroProfile(t *testing.T) {
	s := NewStore(storage.NewMemory())

	got, err := s.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != (Profile{}) {
		t.Errorf("Get() = %+v, want zero profile", got)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := NewStore(storage.NewMemory())
	ctx := context.Background()
	userID := uuid.New()

	want := Profile{
		DisplayName: "Alice",
		Bio:         "Testing things.",
		PhotoURL:    "https://example.com/alice.png",
	}
	if err := s.Set(ctx, userID, want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}

	// Profiles are isolated per user.
	other, err := s.Get(ctx, uuid.New())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if other != (Profile{}) {
		t.Errorf("other user's Get() = %+v, want zero profile", other)
	}
}
