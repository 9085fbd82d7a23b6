package storage

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when a write carries malformed data.
	ErrInvalidInput = errors.New("invalid input")
)
