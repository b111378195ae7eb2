package analytics

import "errors"

var (
	// ErrInvalidFilter is returned when a filter is unscoped or malformed.
	// No backend call is attempted.
	ErrInvalidFilter = errors.New("invalid stream filter")

	// ErrBackendUnavailable is returned when the streaming call cannot be opened.
	ErrBackendUnavailable = errors.New("analytics backend unavailable")
)
