package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a record exists but belongs to a
	// different user.
	ErrForbidden = errors.New("forbidden")
)
