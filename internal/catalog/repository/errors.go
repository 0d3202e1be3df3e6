package repository

import "errors"

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when a uniqueness rule refuses an insert.
	ErrAlreadyExists = errors.New("already exists")
)
