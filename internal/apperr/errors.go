package apperr

import "errors"

var (
	// ErrUnreadable marks file content that could not be read; the item's
	// identity falls back to its name bytes.
	ErrUnreadable = errors.New("content unreadable")

	// ErrExcluded marks an item rejected by a path-exclusion filter.
	ErrExcluded = errors.New("excluded by filter")

	// ErrCollision is returned when a rename target already exists and
	// belongs to a different logical item.
	ErrCollision = errors.New("target name collision")

	// ErrToolUnavailable signals that the external metadata tool could not
	// be found on PATH. Detected once per run.
	ErrToolUnavailable = errors.New("metadata tool unavailable")

	// ErrNoDestination is returned when a destructive mode is requested
	// without a durable output destination configured.
	ErrNoDestination = errors.New("no durable output destination")
)
