package replay

import "errors"

var (
	// ErrNoMessages is returned when a log holds no MSG line to anchor
	// virtual time on.
	ErrNoMessages = errors.New("log has no messages")

	// ErrFinished is returned by operations on a finished replay.
	ErrFinished = errors.New("replay finished")
)
