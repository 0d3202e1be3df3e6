package service

import "errors"

var (
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")

	// ErrRequestPending refuses a new request while the same triple is
	// already pending or active.
	ErrRequestPending = errors.New("request already pending or permission active")

	// ErrResultMismatch marks a validation result whose identity fields do
	// not match the stored row. The consumer acks such results; redelivery
	// cannot fix them.
	ErrResultMismatch = errors.New("validation result does not match stored request")
)
