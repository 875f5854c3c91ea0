package category

import "errors"

var (
	// ErrNoCategories is returned when a table is built from no entries.
	ErrNoCategories = errors.New("no categories")

	// ErrNoActiveCategories is returned when every usable prevalence is zero.
	ErrNoActiveCategories = errors.New("no category with positive prevalence")

	// ErrInvalidPrevalence is returned for negative or non-finite prevalences.
	ErrInvalidPrevalence = errors.New("invalid prevalence")

	// ErrEmptyName is returned when an entry has no name.
	ErrEmptyName = errors.New("category name is empty")

	// ErrUnknownRole is returned by ParseRole.
	ErrUnknownRole = errors.New("unknown category role")
)
