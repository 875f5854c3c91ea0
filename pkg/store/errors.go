package store

import "errors"

var (
	// ErrNotConfigured is returned by a nil or closed store.
	ErrNotConfigured = errors.New("storage is not configured")

	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("run not found")
)
