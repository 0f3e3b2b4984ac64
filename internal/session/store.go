package session

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds a user's chat sessions and the current-session pointer.
//
// The session list is kept sorted by LastUpdated descending: the most
// recently active session is always first. Exactly one session is current
// at any time, or none before the first load.
//
// The zero value is NOT useful - use NewStore() or Restore().
type Store struct {
	mu        sync.RWMutex
	sessions  []ChatSession
	currentID uuid.UUID
}

// NewStore creates an empty Store with no sessions and no current session.
func NewStore() *Store {
	return &Store{}
}

// Restore creates a Store from previously persisted sessions.
// If currentID does not reference one of the restored sessions, the most
// recently updated session becomes current instead (or none if empty).
func Restore(sessions []ChatSession, currentID uuid.UUID) *Store {
	s := &Store{sessions: cloneSessions(sessions)}
	s.sortLocked()

	for _, sess := range s.sessions {
		if sess.ID == currentID {
			s.currentID = currentID
			return s
		}
	}
	if len(s.sessions) > 0 {
		s.currentID = s.sessions[0].ID
	}
	return s
}

// CreateSession creates a new empty session titled "Chat N" (N = count+1),
// inserts it at the head of the list, and makes it current.
// Returns a copy of the new session.
func (s *Store) CreateSession(now time.Time) ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := ChatSession{
		ID:          uuid.New(),
		Title:       fmt.Sprintf("Chat %d", len(s.sessions)+1),
		Messages:    []Message{},
		CreatedAt:   now,
		LastUpdated: now,
	}
	s.sessions = append([]ChatSession{sess}, s.sessions...)
	s.currentID = sess.ID
	return cloneSession(sess)
}

// SelectSession makes the session with the given id current.
// Returns ErrSessionNotFound if the id is not in the store; the current
// selection is left unchanged in that case.
func (s *Store) SelectSession(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return ErrSessionNotFound
	}
	s.currentID = id
	return nil
}

// DeleteSession removes the session with the given id. If the deleted
// session was current, the most recently updated remaining session becomes
// current; if none remain, a fresh session is created so the store never
// ends up current-less after a delete. Returns the resulting current session.
func (s *Store) DeleteSession(id uuid.UUID, now time.Time) (ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return ChatSession{}, ErrSessionNotFound
	}

	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)

	if s.currentID == id {
		if len(s.sessions) > 0 {
			// List is sorted by LastUpdated descending.
			s.currentID = s.sessions[0].ID
		} else {
			sess := ChatSession{
				ID:          uuid.New(),
				Title:       "Chat 1",
				Messages:    []Message{},
				CreatedAt:   now,
				LastUpdated: now,
			}
			s.sessions = []ChatSession{sess}
			s.currentID = sess.ID
		}
	}

	cur := s.sessions[s.indexLocked(s.currentID)]
	return cloneSession(cur), nil
}

// RenameSession sets the session title and bumps LastUpdated.
// A title that trims to empty is rejected with ErrEmptyTitle and the
// session is left untouched.
func (s *Store) RenameSession(id uuid.UUID, title string, now time.Time) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return ErrEmptyTitle
	}
	if len([]rune(trimmed)) > TitleMaxLength {
		trimmed = string([]rune(trimmed)[:TitleMaxLength])
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return ErrSessionNotFound
	}
	s.sessions[idx].Title = trimmed
	s.sessions[idx].LastUpdated = now
	s.sortLocked()
	return nil
}

// AppendMessage appends a new message to the current session and returns
// its generated id. The owning session's LastUpdated is bumped and the
// session list re-sorted so the active session floats to the top.
// Returns ErrNoCurrentSession if no session is selected.
func (s *Store) AppendMessage(d Draft, now time.Time) (uuid.UUID, error) {
	if d.Role != RoleUser && d.Role != RoleAssistant {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidRole, d.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(s.currentID)
	if s.currentID == uuid.Nil || idx < 0 {
		return uuid.Nil, ErrNoCurrentSession
	}

	msg := Message{
		ID:        uuid.New(),
		Role:      d.Role,
		Text:      d.Text,
		ImageURL:  d.ImageURL,
		IsLoading: d.IsLoading,
		Timestamp: now,
	}
	s.sessions[idx].Messages = append(s.sessions[idx].Messages, msg)
	s.sessions[idx].LastUpdated = now
	s.sortLocked()
	return msg.ID, nil
}

// UpdateMessage merges the patch into the message with the given id in the
// current session. The message keeps its position; the owning session's
// LastUpdated is bumped.
func (s *Store) UpdateMessage(id uuid.UUID, p Patch, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(s.currentID)
	if s.currentID == uuid.Nil || idx < 0 {
		return ErrNoCurrentSession
	}

	msgs := s.sessions[idx].Messages
	for i := range msgs {
		if msgs[i].ID != id {
			continue
		}
		if p.Text != nil {
			msgs[i].Text = *p.Text
		}
		if p.ImageURL != nil {
			msgs[i].ImageURL = *p.ImageURL
		}
		if p.IsLoading != nil {
			msgs[i].IsLoading = *p.IsLoading
		}
		if p.Error != nil {
			msgs[i].Error = *p.Error
		}
		if p.SetSuggestions {
			msgs[i].Suggestions = append([]string(nil), p.Suggestions...)
		}
		s.sessions[idx].LastUpdated = now
		s.sortLocked()
		return nil
	}
	return ErrMessageNotFound
}

// Sessions returns a deep copy of all sessions, most recently updated first.
func (s *Store) Sessions() []ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSessions(s.sessions)
}

// Current returns a copy of the current session and true, or false when no
// session is selected.
func (s *Store) Current() (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(s.currentID)
	if s.currentID == uuid.Nil || idx < 0 {
		return ChatSession{}, false
	}
	return cloneSession(s.sessions[idx]), true
}

// Session returns a copy of the session with the given id and true, or
// false when no such session exists.
func (s *Store) Session(id uuid.UUID) (ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return ChatSession{}, false
	}
	return cloneSession(s.sessions[idx]), true
}

// CurrentID returns the current session id, or uuid.Nil when none.
func (s *Store) CurrentID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentID
}

// CurrentMessages returns a copy of the current session's messages.
// Returns an empty slice when no session is selected.
func (s *Store) CurrentMessages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(s.currentID)
	if s.currentID == uuid.Nil || idx < 0 {
		return []Message{}
	}
	msgs := cloneMessages(s.sessions[idx].Messages)
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs
}

// Message returns a copy of the message with the given id from the current
// session.
func (s *Store) Message(id uuid.UUID) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(s.currentID)
	if s.currentID == uuid.Nil || idx < 0 {
		return Message{}, ErrNoCurrentSession
	}
	for _, m := range s.sessions[idx].Messages {
		if m.ID == id {
			return cloneMessage(m), nil
		}
	}
	return Message{}, ErrMessageNotFound
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// indexLocked returns the slice index of the session with the given id,
// or -1. Caller must hold s.mu.
func (s *Store) indexLocked(id uuid.UUID) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// sortLocked re-sorts sessions by LastUpdated descending. Stable, so
// sessions sharing a timestamp keep their relative order.
// Caller must hold s.mu.
func (s *Store) sortLocked() {
	sort.SliceStable(s.sessions, func(i, j int) bool {
		return s.sessions[i].LastUpdated.After(s.sessions[j].LastUpdated)
	})
}
