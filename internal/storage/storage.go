// Package storage provides the durable key-value store abstraction that
// backs chat history, profiles, and settings.
//
// Three implementations are provided: File (one JSON document per key on
// local disk, guarded by a cross-process lock), Postgres (a single kv table
// over pgx), and Memory (for tests and ephemeral serving).
package storage

import (
	"context"
	"errors"
)

// Sentinel errors for store operations. Check with errors.Is().
var (
	// ErrKeyNotFound indicates the key has no stored value.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey indicates the key is empty or contains characters the
	// backend cannot represent.
	ErrInvalidKey = errors.New("invalid key")
)

// KeyValueStore is the durable store the chat controller and the per-user
// record stores depend on. Implementations must treat Set as a full
// replacement of the value and Delete of a missing key as a no-op.
type KeyValueStore interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the value stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error
}

// MaxKeyLength bounds key sizes across backends.
const MaxKeyLength = 512

// ValidateKey rejects empty, oversized, or path-unsafe keys.
// Keys are restricted to alphanumerics plus '_', '-', '.', '@' so that the
// file backend can map them directly to file names.
func ValidateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return ErrInvalidKey
	}
	for _, r := range key {
		isLower := r >= 'a' && r <= 'z'
		isUpper := r >= 'A' && r <= 'Z'
		isDigit := r >= '0' && r <= '9'
		isAllowed := r == '_' || r == '-' || r == '.' || r == '@'
		if !isLower && !isUpper && !isDigit && !isAllowed {
			return ErrInvalidKey
		}
	}
	// Reject relative path tricks outright.
	if key == "." || key == ".." {
		return ErrInvalidKey
	}
	return nil
}
