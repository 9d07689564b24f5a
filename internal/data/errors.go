package data

import "errors"

// Error kinds returned by the stores. Callers match them with errors.Is; the wrapped
// message carries the detail.
var (
	// ErrValidation marks malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced user, conversation or message that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks a caller that is not a participant of the target conversation.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicate marks a unique constraint violation (email, username).
	ErrDuplicate = errors.New("already exists")
)
