package storage

import "errors"

var (
	// ErrNotFound is returned when a retrieved key does not exist in the
	// database.
	ErrNotFound = errors.New("key not found")

	// ErrAlreadyExists is returned when an insert attempts to overwrite an
	// existing key.
	ErrAlreadyExists = errors.New("key already exists")
)
