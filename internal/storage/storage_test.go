package storage

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

// runContractTests exercises the KeyValueStore behavior every backend must
// share. The PostgreSQL backend runs the same suite from postgres_test.go.
func runContractTests(t *testing.T, kv KeyValueStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, "missing_key")
		if !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get(missing) error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		want := []byte(`{"hello":"world"}`)
		if err := kv.Set(ctx, "roundtrip_key", want); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := kv.Get(ctx, "roundtrip_key")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !bytes.Equal(got, want) {
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

	t.Run("delete", func(t *testing.T) {
		if err := kv.Set(ctx, "delete_key", []byte("value")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if err := kv.Delete(ctx, "delete_key"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := kv.Get(ctx, "delete_key"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get(deleted) error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("delete missing key is a no-op", func(t *testing.T) {
		if err := kv.Delete(ctx, "never_existed"); err != nil {
			t.Errorf("Delete(missing) error = %v, want nil", err)
		}
	})

	t.Run("empty value round-trips", func(t *testing.T) {
		if err := kv.Set(ctx, "empty_key", []byte{}); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := kv.Get(ctx, "empty_key")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("Get() = %q, want empty", got)
		}
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		for _, op := range []struct {
			name string
			call func() error
		}{
			{"get", func() error { _, err := kv.Get(ctx, "bad/key"); return err }},
			{"set", func() error { return kv.Set(ctx, "bad/key", []byte("x")) }},
			{"delete", func() error { return kv.Delete(ctx, "bad/key") }},
		} {
			if err := op.call(); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("%s with invalid key: error = %v, want ErrInvalidKey", op.name, err)
			}
		}
	})
}

func TestMemoryContract(t *testing.T) {
	runContractTests(t, NewMemory())
}

func TestMemoryDefensiveCopies(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	value := []byte("original")
	if err := kv.Set(ctx, "key", value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'X'

	got, err := kv.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "original" {
		t.Errorf("Get() = %q after caller mutated input, want %q", got, "original")
	}

	got[0] = 'Y'
	again, err := kv.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(again) != "original" {
		t.Errorf("Get() = %q after caller mutated output, want %q", again, "original")
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{
		"chat_history_alice",
		"current_chat_id_42",
		"user_alice@example.com",
		"profile_550e8400-e29b-41d4-a716-446655440000",
		"theme",
		"a.b-c_d",
		strings.Repeat("k", MaxKeyLength),
	}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) = %v, want nil", key, err)
		}
	}

	invalid := []string{
		"",
		strings.Repeat("k", MaxKeyLength+1),
		"has space",
		"slash/inside",
		"back\\slash",
		"../escape",
		".",
		"..",
		"null\x00byte",
		"новый",
	}
	for _, key := range invalid {
		if err := ValidateKey(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}
