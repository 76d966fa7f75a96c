package recordstore

import (
	"errors"
	"fmt"
)

// ErrType is returned when an operation names a record type that isn't
// configured in the store's registry (spec.md §8's TypeError).
var ErrType = errors.New("recordstore: unconfigured record type")

// ErrIdConflict is returned when Add is given a created timestamp already
// occupied by another active record or tombstone of the same type
// (spec.md §8's IdConflictError).
var ErrIdConflict = errors.New("recordstore: id already in use")

// ErrNoMatch is returned when Replace or Remove targets a record that
// isn't present in the store (spec.md §8's NoMatchError).
var ErrNoMatch = errors.New("recordstore: no matching record")

// TypeError wraps ErrType with the offending type name.
type TypeError struct {
	Type string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("recordstore: unconfigured record type %q", e.Type)
}

func (e *TypeError) Unwrap() error {
	return ErrType
}

// IdConflictError wraps ErrIdConflict with the offending type and id.
type IdConflictError struct {
	Type string
	Id   RecordId
}

func (e *IdConflictError) Error() string {
	return fmt.Sprintf("recordstore: id %d already in use for type %q", e.Id, e.Type)
}

func (e *IdConflictError) Unwrap() error {
	return ErrIdConflict
}

// NoMatchError wraps ErrNoMatch with the offending type and id.
type NoMatchError struct {
	Type string
	Id   RecordId
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("recordstore: no record %d found for type %q", e.Id, e.Type)
}

func (e *NoMatchError) Unwrap() error {
	return ErrNoMatch
}
