package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	ErrEmptyName        = errors.New("name cannot be empty")
	ErrInvalidURL       = errors.New("invalid url")
	ErrInvalidProtocol  = errors.New("protocol must be http or https")
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrInvalidIPVersion = errors.New("ip version must be 4 or 6")
	ErrInvalidScanType  = errors.New("unknown scan type")
	ErrEmptyUsername    = errors.New("username cannot be empty")
	ErrInvalidUsername  = errors.New("username may only contain letters, digits and @/./+/-/_")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrInvalidExpiry    = errors.New("expiry must be after creation")
)
