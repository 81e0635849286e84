// Package domain defines the engine's core entities and shared errors.
package domain

import "errors"

// Common errors used across the engine. Collaborator failures are
// wrapped with the operation that failed so callers can tell transport
// problems from bad data.
var (
	// ErrNotFound is returned when a deck or card referenced by ID
	// does not exist in the local store.
	ErrNotFound = errors.New("not found")

	// ErrPrecondition is returned when a session operation is invoked
	// in a state that does not permit it. It marks a caller bug; the
	// rejected call never mutates state.
	ErrPrecondition = errors.New("precondition violated")

	// ErrInvalidAnswer is returned for an answer outcome that is
	// neither "again" nor "good".
	ErrInvalidAnswer = errors.New("invalid answer")

	// ErrEncryptedDeck is returned when a deck's content is gated and
	// cannot be used without decryption.
	ErrEncryptedDeck = errors.New("deck content is encrypted")
)
