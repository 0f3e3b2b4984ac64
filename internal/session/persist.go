package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/storage"
)

// Durable key prefixes. Keys are namespaced per user identity so switching
// accounts never leaks or merges chat histories.
const (
	historyKeyPrefix = "chat_history_"
	currentKeyPrefix = "current_chat_id_"
)

// HistoryKey returns the durable key holding a user's session list.
func HistoryKey(userID string) string { return historyKeyPrefix + userID }

// CurrentKey returns the durable key holding a user's active session id.
func CurrentKey(userID string) string { return currentKeyPrefix + userID }

// Persister keeps one user's durable key-value entries eventually consistent
// with an in-memory Store, and restores the Store on load.
//
// Failure policy: a corrupt stored history is logged, deleted, and treated
// as "no stored history" - data loss is preferred over refusing to start.
type Persister struct {
	kv     storage.KeyValueStore
	userID string
	logger *slog.Logger
}

// NewPersister creates a Persister for the given user identity.
func NewPersister(kv storage.KeyValueStore, userID string, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{kv: kv, userID: userID, logger: logger}
}

// Load reads the user's stored session list and active-session pointer and
// builds a Store from them. restored reports whether any sessions were
// recovered; when false the caller should create the user's first session.
//
// Corrupt history data is deleted and an empty store returned (restored
// false). Only storage I/O failures are returned as errors.
func (p *Persister) Load(ctx context.Context) (store *Store, restored bool, err error) {
	raw, err := p.kv.Get(ctx, HistoryKey(p.userID))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return NewStore(), false, nil
		}
		return nil, false, fmt.Errorf("loading chat history: %w", err)
	}

	var sessions []ChatSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		p.logger.Warn("stored chat history is corrupt, discarding",
			"user", p.userID, "error", err)
		if delErr := p.kv.Delete(ctx, HistoryKey(p.userID)); delErr != nil {
			p.logger.Warn("deleting corrupt chat history", "error", delErr)
		}
		return NewStore(), false, nil
	}
	if len(sessions) == 0 {
		return NewStore(), false, nil
	}

	currentID := uuid.Nil
	if rawID, idErr := p.kv.Get(ctx, CurrentKey(p.userID)); idErr == nil {
		if parsed, parseErr := uuid.Parse(string(rawID)); parseErr == nil {
			currentID = parsed
		}
	}

	// Restore falls back to the most recently updated session when the
	// stored pointer no longer references a restored session.
	return Restore(sessions, currentID), true, nil
}

// Save writes the store's state back to durable storage. An empty store
// deletes the history key instead of writing an empty list, so stale empty
// state is never resurrected on the next load.
func (p *Persister) Save(ctx context.Context, store *Store) error {
	sessions := store.Sessions()

	if len(sessions) == 0 {
		if err := p.kv.Delete(ctx, HistoryKey(p.userID)); err != nil {
			return fmt.Errorf("deleting chat history: %w", err)
		}
	} else {
		raw, err := json.Marshal(sessions)
		if err != nil {
			return fmt.Errorf("serializing chat history: %w", err)
		}
		if err := p.kv.Set(ctx, HistoryKey(p.userID), raw); err != nil {
			return fmt.Errorf("saving chat history: %w", err)
		}
	}

	if id := store.CurrentID(); id != uuid.Nil {
		if err := p.kv.Set(ctx, CurrentKey(p.userID), []byte(id.String())); err != nil {
			return fmt.Errorf("saving current session id: %w", err)
		}
	} else {
		if err := p.kv.Delete(ctx, CurrentKey(p.userID)); err != nil {
			return fmt.Errorf("deleting current session id: %w", err)
		}
	}
	return nil
}
