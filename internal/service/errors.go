package service

import "errors"

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is; the web layer maps them to HTTP
// status codes.
var (
	// ErrNoReport indicates that there is nothing to report: an organization
	// without a rating at the requested moment, or a scan type that is not
	// published. The data endpoints answer with an empty object.
	ErrNoReport = errors.New("no report available")

	// ErrUnknownAction indicates an admin action that maps to no task type.
	// Web layer should map this to HTTP 400 Bad Request.
	ErrUnknownAction = errors.New("unknown admin action")

	// ErrNoOrganizations indicates an admin action submitted without any organization.
	// Web layer should map this to HTTP 400 Bad Request.
	ErrNoOrganizations = errors.New("no organizations selected")
)
