package session

import "errors"

var (
	// ErrNotReady is returned when a loader is asked for its engine before
	// reaching the Ready stage.
	ErrNotReady = errors.New("session: not ready")

	// ErrLoadFailed is returned by Step once a load has failed.
	ErrLoadFailed = errors.New("session: load failed")

	// ErrNoDriver is returned when a Context has nothing to run.
	ErrNoDriver = errors.New("session: nothing to run")
)
