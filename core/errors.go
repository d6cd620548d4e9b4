package core

import "errors"

var (
	// ErrNotFound is returned when a read or cancel names an id that was
	// never submitted and has no persisted record.
	ErrNotFound = errors.New("delegation not found")

	// ErrAllocationExhausted is returned when identifier generation collides
	// with registered ids for every permitted attempt.
	ErrAllocationExhausted = errors.New("identifier allocation exhausted")

	// ErrDuplicateID is returned when inserting a delegation whose id is
	// already registered.
	ErrDuplicateID = errors.New("delegation id already registered")
)
