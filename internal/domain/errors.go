package domain

import "errors"

// Sentinel errors for rule violations. Callers match them with errors.Is;
// repositories wrap storage errors separately and never return these.
var (
	// ErrUnauthorized is returned when an identity attempts an operation
	// it has no permission for, such as joining a private movement with
	// a bad invitation code.
	ErrUnauthorized = errors.New("authorization denied")

	// ErrNotSupported is returned for state transitions the model forbids,
	// such as the admin leaving their own movement.
	ErrNotSupported = errors.New("operation not supported")

	// ErrInvariant is returned when a mutation would break a data
	// invariant, such as a comment count dropping below zero.
	ErrInvariant = errors.New("invariant violation")
)
