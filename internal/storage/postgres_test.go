package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/patooworld/omni/internal/storage"
	"github.com/patooworld/omni/internal/testutil"
)

func TestPostgresContract(t *testing.T) {
	container, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	kv := storage.NewPostgres(container.Pool)
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		if _, err := kv.Get(ctx, "missing_key"); !errors.Is(err, storage.ErrKeyNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		want := `{"hello":"world"}`
		if err := kv.Set(ctx, "roundtrip_key", []byte(want)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := kv.Get(ctx, "roundtrip_key")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != want {
			t.Errorf("Get() = %q, want %q", got, want)
		}
	})

	t.Run("set replaces", func(t *testing.T) {
		if err := kv.Set(ctx, "replace_key", []byte("first")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := kv.Set(ctx, "replace_key", []byte("second")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := kv.Get(ctx, "replace_key")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != "second" {
			t.Errorf("Get() = %q, want %q", got, "second")
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := kv.Set(ctx, "delete_key", []byte("value")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := kv.Delete(ctx, "delete_key"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := kv.Get(ctx, "delete_key"); !errors.Is(err, storage.ErrKeyNotFound) {
			t.Errorf("Get(deleted) error = %v, want ErrKeyNotFound", err)
		}
		if err := kv.Delete(ctx, "delete_key"); err != nil {
			t.Errorf("Delete(missing) error = %v, want nil", err)
		}
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		if err := kv.Set(ctx, "bad/key", []byte("x")); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("Set(invalid) error = %v, want ErrInvalidKey", err)
		}
	})
}
