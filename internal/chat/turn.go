package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/flows"
	"github.com/patooworld/omni/internal/session"
)

// attachmentFallbackText is the user message text when a turn carries an
// attachment but no text.
const attachmentFallbackText = "Image attached"

// Attachment is a user-supplied image accompanying a turn.
type Attachment struct {
	Data []byte
	MIME string
}

// TurnRequest is one user turn handed to SendUserTurn.
type TurnRequest struct {
	Text string
	Mode Mode

	// Model optionally selects the chat model for ModeChat turns.
	Model string

	// Attachment optionally carries an image. Required for ModeEdit.
	Attachment *Attachment

	// UseRealtimeSearch enables the web-search tool for ModeChat turns.
	UseRealtimeSearch bool
}

// TurnResult reports the messages a completed turn produced.
type TurnResult struct {
	UserMessageID      uuid.UUID
	AssistantMessageID uuid.UUID
}

// SendUserTurn runs one conversational round-trip: it appends the user
// message, appends a loading assistant placeholder, dispatches to the
// collaborator selected by the turn's mode, and resolves or fails the
// placeholder with the outcome. The user message is always recorded before
// the placeholder, and the placeholder before any external call begins.
//
// Attachment conversion happens first; a conversion failure aborts the turn
// before any message is recorded. A collaborator failure is recorded on the
// placeholder message (error set, text cleared, loading off) and returned
// wrapped in ErrExternalCall.
func (c *Controller) SendUserTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.store.Current(); !ok {
		return TurnResult{}, ErrNoActiveSession
	}

	if err := validateTurn(req); err != nil {
		return TurnResult{}, err
	}

	imageDataURI := ""
	if req.Attachment != nil {
		uri, err := encodeAttachment(*req.Attachment)
		if err != nil {
			c.sendNotice(Notice{
				Title:       "Attachment Error",
				Description: "Could not process the attached image.",
				IsError:     true,
			})
			return TurnResult{}, fmt.Errorf("%w: %w", ErrAttachmentProcessing, err)
		}
		imageDataURI = uri
	}

	userText := req.Text
	if strings.TrimSpace(userText) == "" && imageDataURI != "" {
		userText = attachmentFallbackText
	}

	userDraft := session.Draft{Role: session.RoleUser, Text: userText}
	if req.Mode == ModeChat {
		// Generation and edit turns render the source image on the
		// assistant side only.
		userDraft.ImageURL = imageDataURI
	}
	userID, err := c.store.AppendMessage(userDraft, c.now())
	if err != nil {
		return TurnResult{}, err
	}
	c.persistLocked(ctx)

	placeholderID, err := c.store.AppendMessage(session.Draft{
		Role:      session.RoleAssistant,
		IsLoading: true,
	}, c.now())
	if err != nil {
		return TurnResult{}, err
	}
	c.persistLocked(ctx)

	result := TurnResult{UserMessageID: userID, AssistantMessageID: placeholderID}

	outcome, err := c.dispatch(ctx, req, imageDataURI)
	if err != nil {
		c.failTurn(ctx, placeholderID, err)
		return result, fmt.Errorf("%w: %w", ErrExternalCall, err)
	}

	loading := false
	patch := session.Patch{
		Text:           &outcome.text,
		IsLoading:      &loading,
		Suggestions:    outcome.suggestions,
		SetSuggestions: true,
	}
	if outcome.imageURL != "" {
		patch.ImageURL = &outcome.imageURL
	}
	if err := c.store.UpdateMessage(placeholderID, patch, c.now()); err != nil {
		return result, err
	}
	c.persistLocked(ctx)
	return result, nil
}

// turnOutcome is the collaborator result a successful dispatch yields.
type turnOutcome struct {
	text        string
	imageURL    string
	suggestions []string
}

// dispatch routes the turn to the collaborator capability its mode selects.
func (c *Controller) dispatch(ctx context.Context, req TurnRequest, imageDataURI string) (turnOutcome, error) {
	switch req.Mode {
	case ModeChat:
		if imageDataURI != "" && strings.TrimSpace(req.Text) == "" {
			answer, err := c.images.AnalyzeImage(ctx, imageDataURI, "")
			if err != nil {
				return turnOutcome{}, err
			}
			return turnOutcome{text: answer}, nil
		}
		resp, err := c.chat.Chat(ctx, flows.ChatRequest{
			Prompt:            req.Text,
			Model:             req.Model,
			ImageDataURI:      imageDataURI,
			UseRealtimeSearch: req.UseRealtimeSearch,
		})
		if err != nil {
			return turnOutcome{}, err
		}
		return turnOutcome{text: resp.ResponseText, suggestions: resp.Suggestions}, nil

	case ModeImagine:
		url, err := c.images.GenerateImage(ctx, req.Text)
		if err != nil {
			return turnOutcome{}, err
		}
		return turnOutcome{
			text:     fmt.Sprintf("Generated image for: %q", req.Text),
			imageURL: url,
		}, nil

	case ModeEdit:
		url, err := c.images.EditImage(ctx, imageDataURI, req.Text)
		if err != nil {
			return turnOutcome{}, err
		}
		return turnOutcome{
			text:     fmt.Sprintf("Edited image for: %q", req.Text),
			imageURL: url,
		}, nil

	default:
		return turnOutcome{}, fmt.Errorf("%w: unknown mode %q", ErrValidation, req.Mode)
	}
}

// failTurn moves the placeholder to its failed terminal state: error set,
// text cleared, loading off, suggestions cleared. The thread keeps a visible
// failure marker and stays usable.
func (c *Controller) failTurn(ctx context.Context, placeholderID uuid.UUID, cause error) {
	msg := cause.Error()
	empty := ""
	loading := false
	patch := session.Patch{
		Text:           &empty,
		Error:          &msg,
		IsLoading:      &loading,
		SetSuggestions: true,
	}
	if err := c.store.UpdateMessage(placeholderID, patch, c.now()); err != nil {
		c.logger.Error("recording turn failure", "error", err)
	}
	c.persistLocked(ctx)

	c.sendNotice(Notice{
		Title:       "Something went wrong",
		Description: msg,
		IsError:     true,
	})
}

// validateTurn rejects turns the collaborators cannot serve before any
// message is recorded.
func validateTurn(req TurnRequest) error {
	text := strings.TrimSpace(req.Text)
	switch req.Mode {
	case ModeChat:
		if text == "" && req.Attachment == nil {
			return fmt.Errorf("%w: message is empty", ErrValidation)
		}
	case ModeImagine:
		if text == "" {
			return fmt.Errorf("%w: image prompt is empty", ErrValidation)
		}
	case ModeEdit:
		if text == "" {
			return fmt.Errorf("%w: edit prompt is empty", ErrValidation)
		}
		if req.Attachment == nil {
			return fmt.Errorf("%w: edit mode requires an attached image", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrValidation, req.Mode)
	}
	return nil
}

// encodeAttachment converts an attachment into an embeddable data URI.
func encodeAttachment(a Attachment) (string, error) {
	if len(a.Data) == 0 {
		return "", fmt.Errorf("attachment is empty")
	}
	if !strings.HasPrefix(a.MIME, "image/") {
		return "", fmt.Errorf("unsupported attachment type %q", a.MIME)
	}
	return "data:" + a.MIME + ";base64," + base64.StdEncoding.EncodeToString(a.Data), nil
}
