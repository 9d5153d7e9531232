package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a referenced annotation, note, or message
	// does not exist in the resolved chat file.
	ErrNotFound = errors.New("not found")

	// ErrNotCached indicates a save was requested for a path that has
	// no cached chat file, so there is nothing to persist.
	ErrNotCached = errors.New("document not cached")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAssistantUnavailable indicates the AI assistant is not
	// configured. Storage operations keep working without it.
	ErrAssistantUnavailable = errors.New("assistant service unavailable")

	// ErrMalformedDocument indicates a sidecar file failed
	// required-field decoding. Loads treat this as "no prior history"
	// rather than a hard failure.
	ErrMalformedDocument = errors.New("malformed chat document")
)

// MalformedDocumentError reports which entity and field made a sidecar
// document undecodable. It unwraps to ErrMalformedDocument.
type MalformedDocumentError struct {
	// Entity is the entity kind: "document", "annotation", "note", or
	// "message".
	Entity string

	// ID is the offending entity's id, empty when the id itself is the
	// missing field.
	ID string

	// Field is the missing or invalid required field.
	Field string
}

// Error implements the error interface.
func (e *MalformedDocumentError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed chat document: %s missing required field %q", e.Entity, e.Field)
	}
	return fmt.Sprintf("malformed chat document: %s %q missing required field %q", e.Entity, e.ID, e.Field)
}

// Unwrap allows errors.Is(err, ErrMalformedDocument).
func (e *MalformedDocumentError) Unwrap() error {
	return ErrMalformedDocument
}
