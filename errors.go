package storify

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a path does not exist on the backend.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the backend rejects the credentials
	// or the operation on this path.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAlreadyExists is returned when a create collides with an existing object.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidArgument is returned for malformed globs, regexes, depths,
	// byte counts and other bad verb options.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSizeLimitExceeded is returned when a file exceeds an operation's
	// in-memory size guard.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	// ErrConfig is returned for missing or invalid credentials, unknown
	// profiles, and profile store corruption. Always fatal to the invocation.
	ErrConfig = errors.New("configuration error")
	// ErrProvider wraps an opaque backend fault that maps to no other kind.
	ErrProvider = errors.New("provider error")
	// ErrInterrupted is returned when the user cancels the invocation.
	ErrInterrupted = errors.New("interrupted")
)

// Kind returns the taxonomy name for err, for rendering and exit codes.
// Context cancellation counts as an interrupt regardless of wrapping.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, ErrAlreadyExists):
		return "already exists"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid argument"
	case errors.Is(err, ErrSizeLimitExceeded):
		return "size limit exceeded"
	case errors.Is(err, ErrConfig):
		return "configuration error"
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "interrupted"
	default:
		return "provider error"
	}
}
