package service

import "errors"

var (
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrSelfConflict is returned when a conflict pair names one group twice.
	ErrSelfConflict = errors.New("conflict requires two distinct groups")

	// ErrHasReferences is returned when a delete is refused because other
	// entities still reference the target.
	ErrHasReferences = errors.New("still referenced")
)
