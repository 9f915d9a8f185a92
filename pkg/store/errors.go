package store

import "errors"

var (
	// ErrInvalidService is returned when the service name is empty, too long or malformed.
	ErrInvalidService = errors.New("invalid service name")

	// ErrDatabaseError is returned when a database operation fails.
	ErrDatabaseError = errors.New("database error")
)
