package protocol

import "errors"

var (
	// ErrFileNotFound is returned when a log file does not exist.
	ErrFileNotFound = errors.New("log file not found")

	// ErrKeyNotFound is returned when a header key is missing. The reader
	// has been closed by the time the caller sees it.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidHeader is returned when a header value cannot be parsed.
	ErrInvalidHeader = errors.New("invalid header value")

	// ErrClosed is returned by operations on a closed reader or writer.
	ErrClosed = errors.New("log closed")
)
