package domain

import "errors"

// Sentinel errors forming the service-wide taxonomy. Services wrap these
// with %w and handlers translate them with errors.Is; storage and transport
// errors never reach callers wearing their raw types.
var (
	// Malformed request data; user-correctable.
	ErrInvalidInput = errors.New("invalid input")

	// Authentication failures. Handlers return the same generic message for
	// all of them so a caller cannot probe which part failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOTPNotFound        = errors.New("otp not found")
	ErrOTPExpired         = errors.New("otp expired")
	ErrNotVerified        = errors.New("email not verified")

	// Authorization: authenticated but the role forbids the action.
	ErrForbidden = errors.New("forbidden")

	ErrNotFound    = errors.New("not found")
	ErrEmailExists = errors.New("email already registered")

	// Report state machine.
	ErrInvalidStatus = errors.New("invalid report status")
	ErrAlreadyClosed = errors.New("report is closed")
)
