package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a url that is already known).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors

	ErrOrganizationNotFound = fmt.Errorf("%w: organization", ErrNotFound)
	ErrURLNotFound          = fmt.Errorf("%w: url", ErrNotFound)
	ErrEndpointNotFound     = fmt.Errorf("%w: endpoint", ErrNotFound)
	ErrScanNotFound         = fmt.Errorf("%w: scan", ErrNotFound)
	ErrRatingNotFound       = fmt.Errorf("%w: rating", ErrNotFound)
	ErrPromiseNotFound      = fmt.Errorf("%w: promise", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("%w: user", ErrNotFound)
	ErrSessionNotFound      = fmt.Errorf("%w: session", ErrNotFound)
	ErrTaskNotFound         = fmt.Errorf("%w: task", ErrNotFound)

	// Entity-specific "duplicate" errors

	// ErrUsernameExists indicates that a user with the given username already exists.
	ErrUsernameExists = fmt.Errorf("%w: username", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
