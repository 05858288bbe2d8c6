package services

import "errors"

var (
	// ErrUsernameTaken is returned when registering a username that already exists.
	ErrUsernameTaken = errors.New("username already registered")

	// ErrIncorrectUsername is returned when authenticating an unknown username.
	ErrIncorrectUsername = errors.New("incorrect username")

	// ErrIncorrectPassword is returned when the password does not match the stored hash.
	ErrIncorrectPassword = errors.New("incorrect password")

	// ErrEntryNotFound is returned when an entry does not exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrForbidden is returned when a user acts on another user's entry.
	ErrForbidden = errors.New("forbidden")

	// ErrExportDisabled is returned when no object storage backend is configured.
	ErrExportDisabled = errors.New("export storage not configured")

	// ErrExportNotFound is returned when the requested export does not exist
	// under the user's prefix.
	ErrExportNotFound = errors.New("export not found")
)

// ValidationError reports a missing required field. Message is user-facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func requiredField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
