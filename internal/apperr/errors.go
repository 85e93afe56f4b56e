// Package apperr defines the error kinds shared by every layer of the card service.
// Packages wrap one of these kinds into their own sentinels so callers can
// match either the specific error or its kind with errors.Is.
package apperr

import "errors"

// Error kinds.
var (
	// ErrLoad is returned when the identity manifest is missing or malformed.
	ErrLoad = errors.New("load error")

	// ErrAuth is returned when a passphrase does not match.
	ErrAuth = errors.New("authentication failed")

	// ErrPermission is returned when an actor lacks the role for an operation.
	ErrPermission = errors.New("permission denied")

	// ErrPersistence is returned when saving a record fails.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotification is returned when an email or owner notification cannot be sent.
	ErrNotification = errors.New("notification failed")

	// ErrValidation is returned when a required field is empty or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for unknown profile keys, visits or record ids.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a transition is attempted in the wrong state.
	ErrConflict = errors.New("conflict")
)

var kinds = []error{
	ErrLoad,
	ErrAuth,
	ErrPermission,
	ErrPersistence,
	ErrNotification,
	ErrValidation,
	ErrNotFound,
	ErrConflict,
}

// Kind returns the error kind err belongs to, or nil if it matches none.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
