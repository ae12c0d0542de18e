package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or is not visible to the caller
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness rule
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference is returned when a write refers to a related record the caller does not own
	ErrInvalidReference = errors.New("invalid reference")
)
