package domain

import "errors"

var (
	// ErrValidation marks caller input that failed domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing record.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a state transition that is no longer allowed.
	ErrConflict = errors.New("conflict")
)
