// Package apperr holds the error taxonomy shared by the core services and the HTTP layer.
package apperr

import "errors"

var (
	// ErrValidation marks missing or malformed user input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced user or track that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks an authenticated actor that may not perform the operation.
	ErrForbidden = errors.New("permission denied")
	// ErrCatalogUnavailable wraps any track store failure while browsing.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrDuplicateUser is returned when the username or email is taken.
	ErrDuplicateUser = errors.New("username or email already exists")
	// ErrNoFavoritesPlaylist means a user was created without the Favorites playlist.
	ErrNoFavoritesPlaylist = errors.New("favorites playlist missing")
)

// Validation wraps msg as a validation error. The message is safe to show to users.
func Validation(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }
