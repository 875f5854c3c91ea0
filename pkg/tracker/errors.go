package tracker

import "errors"

var (
	// ErrNotStarted is returned by calls made before Start.
	ErrNotStarted = errors.New("tracker: not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("tracker: already started")
)
