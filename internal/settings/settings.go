// Package settings stores per-user application settings and the global
// theme preference.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/storage"
)

const (
	keyPrefix = "app_settings_"

	// themeKey is global, not per user: the device-level theme preference
	// applies before anyone signs in.
	themeKey = "theme"
)

// Theme values.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// ErrInvalidTheme indicates a theme outside light, dark, or system.
var ErrInvalidTheme = errors.New("invalid theme")

// Settings is the per-user application configuration.
type Settings struct {
	AIModel              string `json:"aiModel"`
	Theme                string `json:"theme"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
}

// Defaults returns the settings a user starts with.
func Defaults() Settings {
	return Settings{
		AIModel:              "gemini-2.0-flash",
		Theme:                ThemeSystem,
		NotificationsEnabled: true,
	}
}

// Key returns the durable key for a user's settings.
func Key(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// Store reads and writes settings in the key-value store.
type Store struct {
	kv storage.KeyValueStore
}

// NewStore creates a settings store.
func NewStore(kv storage.KeyValueStore) *Store {
	return &Store{kv: kv}
}

// Get returns the user's settings, falling back to defaults when none are
// stored.
func (s *Store) Get(ctx context.Context, userID uuid.UUID) (Settings, error) {
	data, err := s.kv.Get(ctx, Key(userID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return Defaults(), nil
		}
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return out, nil
}

// Set replaces the user's settings. The embedded theme is validated.
func (s *Store) Set(ctx context.Context, userID uuid.UUID, in Settings) error {
	if err := validateTheme(in.Theme); err != nil {
		return err
	}
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := s.kv.Set(ctx, Key(userID), data); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// Theme returns the global theme preference, defaulting to system.
func (s *Store) Theme(ctx context.Context) (string, error) {
	data, err := s.kv.Get(ctx, themeKey)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return ThemeSystem, nil
		}
		return "", fmt.Errorf("reading theme: %w", err)
	}
	theme := string(data)
	if err := validateTheme(theme); err != nil {
		return ThemeSystem, nil
	}
	return theme, nil
}

// SetTheme stores the global theme preference.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	if err := validateTheme(theme); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, themeKey, []byte(theme)); err != nil {
		return fmt.Errorf("writing theme: %w", err)
	}
	return nil
}

func validateTheme(theme string) error {
	switch theme {
	case ThemeLight, ThemeDark, ThemeSystem:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
}
