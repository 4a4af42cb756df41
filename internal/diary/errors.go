package diary

import "errors"

var (
	// ErrConflict is returned when signing up with a taken username or
	// pairing a user who already has a partner.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredentials is returned for an unknown username or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrNotFound is returned for entries that do not exist or belong to
	// another couple, and for unknown users when pairing.
	ErrNotFound = errors.New("not found")
	// ErrNoCouple is returned when the user has no couple to write into.
	ErrNoCouple = errors.New("no couple relationship found")
	// ErrValidation is returned for malformed input. The wrapping error text
	// is safe to show to the user.
	ErrValidation = errors.New("validation error")
)
