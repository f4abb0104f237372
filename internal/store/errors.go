package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write would violate a uniqueness constraint.
// Nothing is written when it is returned.
var ErrDuplicate = errors.New("already exists")
