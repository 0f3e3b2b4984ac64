package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/patooworld/omni/internal/auth"
	"github.com/patooworld/omni/internal/chat"
	"github.com/patooworld/omni/internal/profile"
	"github.com/patooworld/omni/internal/session"
	"github.com/patooworld/omni/internal/settings"
)

// maxRequestBody caps request bodies. Attachments arrive base64-encoded, so
// this allows images of a few megabytes.
const maxRequestBody = 8 << 20

type handlers struct {
	logger      *slog.Logger
	auth        Authenticator
	controllers *Registry
	profiles    *profile.Store
	settings    *settings.Store
}

// decodeBody decodes a JSON request body into dst with a size cap.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty_body", "request body is required")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "malformed request body")
		return false
	}
	return true
}

// controllerFor resolves the authenticated user's controller.
func (h *handlers) controllerFor(w http.ResponseWriter, r *http.Request) (*chat.Controller, auth.User, bool) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "user identity required")
		return nil, auth.User{}, false
	}
	c, err := h.controllers.Controller(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("materializing controller", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "controller_failed", "could not load chat state")
		return nil, auth.User{}, false
	}
	return c, user, true
}

// pathID parses the {id} path segment as a UUID.
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "malformed id")
		return uuid.Nil, false
	}
	return id, true
}

// --- auth ---

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
}

func toUserResponse(u auth.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}
}

func (h *handlers) signUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, token, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, http.StatusConflict, "user_exists", "an account with this email already exists")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "invalid_credentials", err.Error())
		default:
			h.logger.Error("sign-up failed", "error", err)
			writeError(w, http.StatusInternalServerError, "signup_failed", "could not create account")
		}
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: toUserResponse(user)})
}

func (h *handlers) signIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, token, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "wrong email or password")
			return
		}
		h.logger.Error("sign-in failed", "error", err)
		writeError(w, http.StatusInternalServerError, "signin_failed", "could not sign in")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(user)})
}

// --- sessions ---

type sessionsResponse struct {
	Sessions  []session.ChatSession `json:"sessions"`
	CurrentID uuid.UUID             `json:"currentId"`
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{
		Sessions:  c.Sessions(),
		CurrentID: c.CurrentID(),
	})
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	s, err := c.NewChat(r.Context())
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create chat")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *handlers) selectSession(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := c.SelectChat(r.Context(), id); err != nil {
		h.logger.Error("selecting session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "select_failed", "could not select chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currentId": c.CurrentID()})
}

type renameRequest struct {
	Title string `json:"title"`
}

func (h *handlers) renameSession(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req renameRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := c.RenameChat(r.Context(), id, req.Title); err != nil {
		switch {
		case errors.Is(err, chat.ErrValidation):
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "title must not be empty")
		case errors.Is(err, session.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "not_found", "no such chat")
		default:
			h.logger.Error("renaming session", "session_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "rename_failed", "could not rename chat")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	current, err := c.DeleteChat(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such chat")
			return
		}
		h.logger.Error("deleting session", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"currentId": current.ID})
}

func (h *handlers) currentMessages(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currentId": c.CurrentID(),
		"messages":  c.CurrentMessages(),
	})
}

// --- chat turns ---

type turnRequest struct {
	Text              string `json:"text"`
	Mode              string `json:"mode,omitempty"`
	Model             string `json:"model,omitempty"`
	UseRealtimeSearch bool   `json:"useRealtimeSearch,omitempty"`

	// Attachment is a base64 payload plus its MIME type.
	Attachment     string `json:"attachment,omitempty"`
	AttachmentMIME string `json:"attachmentMime,omitempty"`
}

func (h *handlers) sendTurn(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	var req turnRequest
	if !decodeBody(w, r, &req) {
		return
	}

	mode := chat.Mode(req.Mode)
	if req.Mode == "" {
		mode = chat.ModeChat
	}

	turn := chat.TurnRequest{
		Text:              req.Text,
		Mode:              mode,
		Model:             req.Model,
		UseRealtimeSearch: req.UseRealtimeSearch,
	}
	if req.Attachment != "" {
		data, err := base64.StdEncoding.DecodeString(req.Attachment)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_attachment", "attachment is not valid base64")
			return
		}
		turn.Attachment = &chat.Attachment{Data: data, MIME: req.AttachmentMIME}
	}

	if !c.TryBeginTurn() {
		writeError(w, http.StatusConflict, "busy", "a turn is already in progress")
		return
	}
	defer c.EndTurn()

	result, err := c.SendUserTurn(r.Context(), turn)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrNoActiveSession):
			writeError(w, http.StatusConflict, "no_active_session", "no chat is selected")
		case errors.Is(err, chat.ErrValidation):
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		case errors.Is(err, chat.ErrAttachmentProcessing):
			writeError(w, http.StatusBadRequest, "attachment_failed", "could not process the attachment")
		case errors.Is(err, chat.ErrExternalCall):
			// The failure is already recorded on the placeholder message;
			// the client re-renders the thread with the error marker.
			writeJSON(w, http.StatusOK, map[string]any{
				"userMessageId":      result.UserMessageID,
				"assistantMessageId": result.AssistantMessageID,
				"failed":             true,
				"messages":           c.CurrentMessages(),
			})
		default:
			h.logger.Error("sending turn", "error", err)
			writeError(w, http.StatusInternalServerError, "turn_failed", "could not send message")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userMessageId":      result.UserMessageID,
		"assistantMessageId": result.AssistantMessageID,
		"failed":             false,
		"messages":           c.CurrentMessages(),
	})
}

// --- message actions ---

type actionRequest struct {
	Action   string `json:"action"`
	Style    string `json:"style,omitempty"`
	Language string `json:"language,omitempty"`
}

func (h *handlers) messageAction(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := c.ApplyTextAction(r.Context(), chat.ActionRequest{
		MessageID: id,
		Action:    chat.Action(strings.ToLower(req.Action)),
		Style:     req.Style,
		Language:  req.Language,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrMessageNotFound), errors.Is(err, session.ErrNoCurrentSession):
			writeError(w, http.StatusNotFound, "not_found", "no such message")
		case errors.Is(err, chat.ErrValidation):
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		case errors.Is(err, chat.ErrExternalCall):
			writeError(w, http.StatusBadGateway, "action_failed", "the action could not be completed")
		default:
			h.logger.Error("applying message action", "message_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "action_failed", "could not apply action")
		}
		return
	}

	resp := map[string]any{"messages": c.CurrentMessages()}
	if playback, active := c.CurrentPlayback(); active {
		resp["playback"] = playback
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getPlayback(w http.ResponseWriter, r *http.Request) {
	c, _, ok := h.controllerFor(w, r)
	if !ok {
		return
	}
	playback, active := c.CurrentPlayback()
	if !active {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "playback": playback})
}

// --- profile and settings ---

func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "user identity required")
		return
	}
	p, err := h.profiles.Get(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("reading profile", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "profile_failed", "could not read profile")
		return
	}
	if p.DisplayName == "" {
		p.DisplayName = user.DisplayName
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) putProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "user identity required")
		return
	}
	var p profile.Profile
	if !decodeBody(w, r, &p) {
		return
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "display name must not be empty")
		return
	}
	if err := h.profiles.Set(r.Context(), user.ID, p); err != nil {
		h.logger.Error("writing profile", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "profile_failed", "could not save profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "user identity required")
		return
	}
	s, err := h.settings.Get(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("reading settings", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "settings_failed", "could not read settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "user identity required")
		return
	}
	var s settings.Settings
	if !decodeBody(w, r, &s) {
		return
	}
	if err := h.settings.Set(r.Context(), user.ID, s); err != nil {
		if errors.Is(err, settings.ErrInvalidTheme) {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
		h.logger.Error("writing settings", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "settings_failed", "could not save settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// --- theme ---

type themeRequest struct {
	Theme string `json:"theme"`
}

func (h *handlers) getTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.settings.Theme(r.Context())
	if err != nil {
		h.logger.Error("reading theme", "error", err)
		writeError(w, http.StatusInternalServerError, "theme_failed", "could not read theme")
		return
	}
	writeJSON(w, http.StatusOK, themeRequest{Theme: theme})
}

func (h *handlers) putTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.settings.SetTheme(r.Context(), req.Theme); err != nil {
		if errors.Is(err, settings.ErrInvalidTheme) {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
		h.logger.Error("writing theme", "error", err)
		writeError(w, http.StatusInternalServerError, "theme_failed", "could not save theme")
		return
	}
	writeJSON(w, http.StatusOK, req)
}
