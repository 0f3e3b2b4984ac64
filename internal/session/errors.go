package session

import "errors"

// Sentinel errors for store operations. Check with errors.Is().
var (
	// ErrSessionNotFound indicates the requested session id is not in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound indicates the message id is not in the current session.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoCurrentSession indicates an operation that requires an active
	// session was called while none is selected.
	ErrNoCurrentSession = errors.New("no active session")

	// ErrEmptyTitle indicates a rename with a title that trims to empty.
	ErrEmptyTitle = errors.New("session title cannot be empty")

	// ErrInvalidRole indicates a message draft with an unknown role.
	ErrInvalidRole = errors.New("invalid message role")
)
