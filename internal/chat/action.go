package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/session"
)

// Action identifies a per-message action.
type Action string

const (
	ActionRephrase      Action = "rephrase"
	ActionTranslate     Action = "translate"
	ActionExpand        Action = "expand"
	ActionImprovePrompt Action = "improve-prompt"
	ActionReadAloud     Action = "read-aloud"
)

// ActionRequest targets a message with an action. Style applies to rephrase,
// Language to translate.
type ActionRequest struct {
	MessageID uuid.UUID
	Action    Action
	Style     string
	Language  string
}

// ApplyTextAction runs an action against an existing message. The transform
// actions append a new labeled assistant message with the result; the
// original message is never modified. ActionReadAloud instead toggles the
// playback side state and appends nothing.
func (c *Controller) ApplyTextAction(ctx context.Context, req ActionRequest) error {
	if req.Action == ActionReadAloud {
		return c.toggleReadAloud(ctx, req.MessageID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	target, err := c.store.Message(req.MessageID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(target.Text) == "" {
		return fmt.Errorf("%w: message has no text to act on", ErrValidation)
	}

	label, result, err := c.runTransform(ctx, req, target)
	if err != nil {
		c.sendNotice(Notice{
			Title:       "Action failed",
			Description: err.Error(),
			IsError:     true,
		})
		return fmt.Errorf("%w: %w", ErrExternalCall, err)
	}

	if _, err := c.store.AppendMessage(session.Draft{
		Role: session.RoleAssistant,
		Text: fmt.Sprintf("**%s:** %s", label, result),
	}, c.now()); err != nil {
		return err
	}
	c.persistLocked(ctx)
	return nil
}

// runTransform dispatches to the transform collaborator and returns the
// label the appended message is prefixed with.
func (c *Controller) runTransform(ctx context.Context, req ActionRequest, target session.Message) (label, result string, err error) {
	switch req.Action {
	case ActionRephrase:
		result, err = c.transform.Rephrase(ctx, target.Text, req.Style)
		label = fmt.Sprintf("Rephrased (%s)", req.Style)

	case ActionTranslate:
		if strings.TrimSpace(req.Language) == "" {
			return "", "", fmt.Errorf("%w: target language is empty", ErrValidation)
		}
		result, err = c.transform.Translate(ctx, target.Text, req.Language)
		label = fmt.Sprintf("Translated to %s", req.Language)

	case ActionExpand:
		result, err = c.transform.Expand(ctx, target.Text)
		label = "Expanded"

	case ActionImprovePrompt:
		prompt, perr := c.precedingUserText(target.ID)
		if perr != nil {
			return "", "", perr
		}
		result, err = c.transform.ImprovePrompt(ctx, prompt, target.Text)
		label = "Improved prompt"

	default:
		return "", "", fmt.Errorf("%w: unknown action %q", ErrValidation, req.Action)
	}
	return label, result, err
}

// precedingUserText finds the user message immediately preceding the given
// assistant message in the current session.
func (c *Controller) precedingUserText(id uuid.UUID) (string, error) {
	msgs := c.store.CurrentMessages()
	for i, m := range msgs {
		if m.ID != id {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if msgs[j].Role == session.RoleUser {
				return msgs[j].Text, nil
			}
		}
		return "", fmt.Errorf("%w: no preceding user message", ErrValidation)
	}
	return "", session.ErrMessageNotFound
}

// toggleReadAloud starts playback for the message, or stops it if that
// message is already playing. Starting a new playback replaces any other
// in-flight one.
func (c *Controller) toggleReadAloud(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	target, err := c.store.Message(id)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if strings.TrimSpace(target.Text) == "" {
		return fmt.Errorf("%w: message has no text to read", ErrValidation)
	}

	c.playbackM.Lock()
	if c.playback != nil && c.playback.MessageID == id {
		c.playback = nil
		c.playbackM.Unlock()
		return nil
	}
	// Starting a new playback stops any other in-flight one immediately,
	// before synthesis begins.
	c.playback = nil
	c.playbackM.Unlock()

	audio, err := c.speech.Speak(ctx, target.Text)
	if err != nil {
		c.sendNotice(Notice{
			Title:       "Read aloud failed",
			Description: err.Error(),
			IsError:     true,
		})
		return fmt.Errorf("%w: %w", ErrExternalCall, err)
	}

	c.playbackM.Lock()
	c.playback = &Playback{MessageID: id, AudioDataURI: audio}
	c.playbackM.Unlock()
	return nil
}

// StopPlayback clears any active read-aloud playback.
func (c *Controller) StopPlayback() {
	c.playbackM.Lock()
	c.playback = nil
	c.playbackM.Unlock()
}
