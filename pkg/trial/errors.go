package trial

import "errors"

var (
	// ErrInvalidConfig is returned by New for unusable session parameters.
	ErrInvalidConfig = errors.New("trial: invalid config")

	// ErrFollowNeedsRoute is returned when a Follow session has no route
	// for the leader to drive.
	ErrFollowNeedsRoute = errors.New("trial: follow presentation needs a route")

	// ErrNotBegun is returned by Tick before Begin.
	ErrNotBegun = errors.New("trial: session not begun")
)
