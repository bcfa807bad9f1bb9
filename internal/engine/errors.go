package engine

import "errors"

var (
	// ErrInvalidConfig is returned by New when the configuration is invalid.
	ErrInvalidConfig = errors.New("engine: invalid config")
	// ErrNotFound is returned when no cached unit has the requested ID.
	ErrNotFound = errors.New("engine: unit not found")
	// ErrRotation is returned when the open unit could not be compressed
	// or indexed. The unit stays open and rotation is retried.
	ErrRotation = errors.New("engine: rotation failed")
)
