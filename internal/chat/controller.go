// Package chat implements the chat controller: the orchestration layer that
// owns session and message lifecycle, drives the AI collaborator services,
// and keeps durable storage in sync with every mutation.
//
// One Controller exists per authenticated user. All mutations go through it;
// readers get deep copies from the underlying session store.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/flows"
	"github.com/patooworld/omni/internal/session"
)

// Sentinel errors surfaced to the presentation layer.
var (
	// ErrNoActiveSession indicates an operation that needs a current session
	// ran without one.
	ErrNoActiveSession = errors.New("no active session")

	// ErrAttachmentProcessing indicates an attachment could not be converted
	// before any message was recorded.
	ErrAttachmentProcessing = errors.New("attachment processing failed")

	// ErrExternalCall indicates the AI collaborator call failed. The failure
	// is also recorded on the pending assistant message.
	ErrExternalCall = errors.New("external call failed")

	// ErrValidation indicates rejected input, such as an empty rename or an
	// empty image prompt. No session state is mutated.
	ErrValidation = errors.New("validation failed")
)

// Mode selects which collaborator capability a user turn dispatches to.
type Mode string

const (
	// ModeChat is a conversational turn, optionally grounded in an image.
	ModeChat Mode = "chat"

	// ModeImagine generates an image from the turn's text.
	ModeImagine Mode = "imagine"

	// ModeEdit applies a text-described edit to the attached image.
	ModeEdit Mode = "edit"
)

// Conversationalist is the conversational completion capability.
type Conversationalist interface {
	Chat(ctx context.Context, req flows.ChatRequest) (flows.ChatResponse, error)
}

// ImageServices covers image generation, editing, and image-grounded queries.
type ImageServices interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	EditImage(ctx context.Context, imageDataURI, prompt string) (string, error)
	AnalyzeImage(ctx context.Context, imageDataURI, question string) (string, error)
}

// Transformer covers the text transform capabilities behind message actions.
type Transformer interface {
	Rephrase(ctx context.Context, text, style string) (string, error)
	Translate(ctx context.Context, text, language string) (string, error)
	Expand(ctx context.Context, text string) (string, error)
	ImprovePrompt(ctx context.Context, originalPrompt, aiResponse string) (string, error)
}

// Speaker is the text-to-speech capability behind read-aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) (string, error)
}

// Notice is a transient notification for the presentation layer.
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsError     bool   `json:"isError"`
}

// Playback is the audio side state for read-aloud. At most one playback is
// active per user; starting a new one replaces the previous.
type Playback struct {
	MessageID    uuid.UUID `json:"messageId"`
	AudioDataURI string    `json:"audioDataUri"`
}

// Config contains all required parameters for the Controller.
type Config struct {
	Persister *session.Persister
	Chat      Conversationalist
	Images    ImageServices
	Transform Transformer
	Speech    Speaker
	Logger    *slog.Logger

	// Notify receives transient notifications. Optional.
	Notify func(Notice)

	// Now overrides the clock. Optional; defaults to time.Now.
	Now func() time.Time
}

func (cfg Config) validate() error {
	if cfg.Persister == nil {
		return errors.New("persister is required")
	}
	if cfg.Chat == nil {
		return errors.New("conversationalist is required")
	}
	if cfg.Images == nil {
		return errors.New("image services are required")
	}
	if cfg.Transform == nil {
		return errors.New("transformer is required")
	}
	if cfg.Speech == nil {
		return errors.New("speaker is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Controller mediates all session and message lifecycle transitions for one
// user. Mutations are serialized by an internal mutex; the busy flag is an
// advisory signal for presentation clients, not an enforcement mechanism.
type Controller struct {
	mu    sync.Mutex
	store *session.Store

	persister *session.Persister
	chat      Conversationalist
	images    ImageServices
	transform Transformer
	speech    Speaker
	logger    *slog.Logger
	notify    func(Notice)
	now       func() time.Time

	busy atomic.Bool

	// editing tracks the session pinned to the title-edit UI state.
	editing   *editState
	playback  *Playback
	playbackM sync.Mutex
}

type editState struct {
	id    uuid.UUID
	title string
}

// New creates a Controller with an empty store. Call Bootstrap to restore
// durable history before serving requests.
func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store:     session.NewStore(),
		persister: cfg.Persister,
		chat:      cfg.Chat,
		images:    cfg.Images,
		transform: cfg.Transform,
		speech:    cfg.Speech,
		logger:    cfg.Logger,
		notify:    cfg.Notify,
		now:       now,
	}, nil
}

// Bootstrap restores the user's durable history. If nothing was stored, it
// creates the first session so the user always lands in a usable chat.
func (c *Controller) Bootstrap(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	store, restored, err := c.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("restoring chat history: %w", err)
	}
	c.store = store

	if !restored || store.Len() == 0 {
		s := c.store.CreateSession(c.now())
		c.editing = &editState{id: s.ID, title: s.Title}
		c.persistLocked(ctx)
	}
	return nil
}

// TryBeginTurn attempts to claim the advisory busy flag. It returns false if
// a turn is already in flight.
func (c *Controller) TryBeginTurn() bool {
	return c.busy.CompareAndSwap(false, true)
}

// EndTurn releases the advisory busy flag.
func (c *Controller) EndTurn() {
	c.busy.Store(false)
}

// Busy reports whether a turn is in flight.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// NewChat creates a session titled "Chat N", makes it current, and pins it
// to the title-edit state.
func (c *Controller) NewChat(ctx context.Context) (session.ChatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.store.CreateSession(c.now())
	c.editing = &editState{id: s.ID, title: s.Title}
	c.persistLocked(ctx)
	return s, nil
}

// SelectChat makes the given session current. An unknown id is a no-op.
func (c *Controller) SelectChat(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.SelectSession(id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.logger.Warn("select ignored unknown session", "session_id", id)
			return nil
		}
		return err
	}
	c.editing = nil
	c.persistLocked(ctx)
	return nil
}

// DeleteChat removes the session. Deleting the current session falls back to
// the most-recently-updated remaining one, or creates a fresh session when
// none remain.
func (c *Controller) DeleteChat(ctx context.Context, id uuid.UUID) (session.ChatSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.store.DeleteSession(id, c.now())
	if err != nil {
		return session.ChatSession{}, err
	}
	c.editing = nil
	c.persistLocked(ctx)
	return current, nil
}

// RenameChat sets the session title. A title that trims to empty is rejected
// without mutation, and the title-edit state re-enters with the original
// title so the user can try again.
func (c *Controller) RenameChat(ctx context.Context, id uuid.UUID, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.RenameSession(id, title, c.now()); err != nil {
		if errors.Is(err, session.ErrEmptyTitle) {
			if s, ok := c.store.Session(id); ok {
				c.editing = &editState{id: id, title: s.Title}
			}
			return fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
		return err
	}
	c.editing = nil
	c.persistLocked(ctx)
	return nil
}

// EditingSession returns the session currently pinned to the title-edit UI
// state, if any.
func (c *Controller) EditingSession() (uuid.UUID, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return uuid.Nil, "", false
	}
	return c.editing.id, c.editing.title, true
}

// Sessions returns a copy of the session list, most recently updated first.
func (c *Controller) Sessions() []session.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Sessions()
}

// CurrentMessages returns a copy of the current session's messages.
func (c *Controller) CurrentMessages() []session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.CurrentMessages()
}

// CurrentID returns the current session id, or uuid.Nil when none is set.
func (c *Controller) CurrentID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.CurrentID()
}

// CurrentPlayback returns the active read-aloud playback, if any.
func (c *Controller) CurrentPlayback() (Playback, bool) {
	c.playbackM.Lock()
	defer c.playbackM.Unlock()
	if c.playback == nil {
		return Playback{}, false
	}
	return *c.playback, true
}

// persistLocked writes the store to durable storage. Persistence failures
// are logged, not surfaced: the in-memory state stays authoritative and the
// next mutation retries the write.
func (c *Controller) persistLocked(ctx context.Context) {
	if err := c.persister.Save(ctx, c.store); err != nil {
		c.logger.Error("persisting chat history failed", "error", err)
	}
}

// sendNotice delivers a transient notification when a notifier is wired.
func (c *Controller) sendNotice(n Notice) {
	if c.notify != nil {
		c.notify(n)
	}
}
