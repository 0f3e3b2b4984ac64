// Package session provides the chat-session state machine: the message and
// session data model, an in-memory store with reducer-style operations, and
// per-user persistence over a durable key-value store.
//
// Thread Safety: Store is safe for concurrent use. Mutating operations
// replace whole values rather than mutating shared slices in place, so
// readers never observe partial updates.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TitleMaxLength is the maximum length for a session title.
const TitleMaxLength = 100

// Message is one turn in a conversation. ID, Role, and Timestamp are fixed
// at creation; Text, ImageURL, IsLoading, Error, and Suggestions may change
// afterwards, but only through Store.UpdateMessage.
type Message struct {
	ID          uuid.UUID `json:"id"`
	Role        string    `json:"role"`
	Text        string    `json:"text"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	IsLoading   bool      `json:"isLoading,omitempty"`
	Error       string    `json:"error,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Draft holds the caller-supplied fields for a new message.
// The store assigns ID and Timestamp on append.
type Draft struct {
	Role      string
	Text      string
	ImageURL  string
	IsLoading bool
}

// Patch is a partial update to an existing message. Nil pointer fields are
// left untouched; Suggestions replaces the whole list when SetSuggestions
// is true (allows clearing with an empty list).
type Patch struct {
	Text           *string
	ImageURL       *string
	IsLoading      *bool
	Error          *string
	Suggestions    []string
	SetSuggestions bool
}

// ChatSession is one labeled conversation thread. Messages are append-only:
// entries are updated in place via Patch but never reordered or removed
// individually.
type ChatSession struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func cloneMessage(m Message) Message {
	cp := m
	if m.Suggestions != nil {
		cp.Suggestions = make([]string, len(m.Suggestions))
		copy(cp.Suggestions, m.Suggestions)
	}
	return cp
}

func cloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	cp := make([]Message, len(msgs))
	for i, m := range msgs {
		cp[i] = cloneMessage(m)
	}
	return cp
}

func cloneSession(s ChatSession) ChatSession {
	cp := s
	cp.Messages = cloneMessages(s.Messages)
	if cp.Messages == nil {
		cp.Messages = []Message{}
	}
	return cp
}

func cloneSessions(sessions []ChatSession) []ChatSession {
	cp := make([]ChatSession, len(sessions))
	for i, s := range sessions {
		cp[i] = cloneSession(s)
	}
	return cp
}
