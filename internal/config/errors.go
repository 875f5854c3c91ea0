package config

import "errors"

var (
	// ErrInvalidSettings is returned for unusable environment settings.
	ErrInvalidSettings = errors.New("config: invalid settings")

	// ErrInvalidExperiment is returned when an experiment file fails
	// validation.
	ErrInvalidExperiment = errors.New("config: invalid experiment")

	// ErrInvalidLevel is returned when a level file fails validation.
	ErrInvalidLevel = errors.New("config: invalid level")
)
