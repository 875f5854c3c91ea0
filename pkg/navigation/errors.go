package navigation

import "errors"

var (
	// ErrFileNotFound is returned when a route file does not exist.
	ErrFileNotFound = errors.New("route file not found")

	// ErrEmptyRoute is returned when a route holds no usable points.
	ErrEmptyRoute = errors.New("route has no points")

	// ErrShortRoute is returned when a walk is started on fewer than two
	// points.
	ErrShortRoute = errors.New("route needs at least two points")

	// ErrStartOutOfRange is returned for a start index past the route end.
	ErrStartOutOfRange = errors.New("start point out of range")
)
