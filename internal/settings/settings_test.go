package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/storage"
)

func TestGetMissingReturnsDefaults(t *testing.T) {
	s := NewStore(storage.NewMemory())

	got, err := s.Get(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != Defaults() {
		t.Errorf("Get() = %+v, want %+v", got, Defaults())
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := NewStore(storage.NewMemory())
	ctx := context.Background()
	userID := uuid.New()

	want := Settings{
		AIModel:              "gemini-2.5-flash",
		Theme:                ThemeDark,
		NotificationsEnabled: false,
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
}

func TestSetRejectsInvalidTheme(t *testing.T) {
	s := NewStore(storage.NewMemory())

	in := Defaults()
	in.Theme = "neon"
	err := s.Set(context.Background(), uuid.New(), in)
	if !errors.Is(err, ErrInvalidTheme) {
		t.Errorf("Set() error = %v, want ErrInvalidTheme", err)
	}
}

func TestGlobalTheme(t *testing.T) {
	kv := storage.NewMemory()
	s := NewStore(kv)
	ctx := context.Background()

	t.Run("defaults to system", func(t *testing.T) {
		got, err := s.Theme(ctx)
		if err != nil {
			t.Fatalf("Theme() error = %v", err)
		}
		if got != ThemeSystem {
			t.Errorf("Theme() = %q, want %q", got, ThemeSystem)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		if err := s.SetTheme(ctx, ThemeDark); err != nil {
			t.Fatalf("SetTheme() error = %v", err)
		}
		got, err := s.Theme(ctx)
		if err != nil {
			t.Fatalf("Theme() error = %v", err)
		}
		if got != ThemeDark {
			t.Errorf("Theme() = %q, want %q", got, ThemeDark)
		}
	})

	t.Run("rejects invalid value", func(t *testing.T) {
		if err := s.SetTheme(ctx, "neon"); !errors.Is(err, ErrInvalidTheme) {
			t.Errorf("SetTheme() error = %v, want ErrInvalidTheme", err)
		}
	})

	t.Run("corrupt stored value falls back to system", func(t *testing.T) {
		if err := kv.Set(ctx, "theme", []byte("neon")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := s.Theme(ctx)
		if err != nil {
			t.Fatalf("Theme() error = %v", err)
		}
		if got != ThemeSystem {
			t.Errorf("Theme() = %q, want fallback %q", got, ThemeSystem)
		}
	})
}
