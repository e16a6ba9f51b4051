package domain

import "errors"

var (
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by stores on unique key collisions.
	ErrAlreadyExists = errors.New("already exists")
)
