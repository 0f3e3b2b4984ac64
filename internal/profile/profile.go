// Package profile stores the small per-user profile record.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/storage"
)

const keyPrefix = "profile_"

// Profile is the user-editable public record.
type Profile struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// Key returns the durable key for a user's profile.
func Key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// Store reads and writes profiles in the key-value store.
type Store struct {
	kv storage.KeyValueStore
}

// NewStore creates a profile store.
func NewStore(kv storage.KeyValueStore) *Store {
	return &Store{kv: kv}
}

// Get returns the stored profile, or the zero profile when none exists.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (Profile, error) {
	data, err := s.kv.Get(ctx, Key(userID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("reading profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}

// Set replaces the stored profile.
func (s *Store) Set(ctx context.Context, userID uuid.UUID, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	if err := s.kv.Set(ctx, Key(userID), data); err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	return nil
}
