// Package recordtype defines the capability set application record payloads
// must implement (spec.md §3, §9 design notes) and the registry that maps a
// configured type name to a constructor for that payload — built once at
// store construction, never a process-global lookup (§9 "Global state").
package recordtype

import "github.com/formulahunter/recordsync-go/internal/codec"

// Payload is the capability set a record's application data must implement:
// round-trip to canonical form, equality modulo the record's intrinsic
// fields (created/modified), and a stable display string. Dynamic dispatch
// here is acceptable — payloads are only touched on the sync cold path, per
// §9's "not on inner loops" guidance.
type Payload interface {
	// MarshalCanonical returns the payload's fields in the deterministic
	// order the payload type defines. Intrinsic fields (_created,
	// _modified) are added by the caller, not by the payload itself.
	MarshalCanonical() (*codec.OrderedMap, error)

	// UnmarshalCanonical populates the payload from its canonical fields.
	UnmarshalCanonical(fields *codec.OrderedMap) error

	// Equal reports whether two payloads are equal ignoring created/modified.
	Equal(other Payload) bool

	// String returns a stable, human-readable summary for display.
	String() string
}

// Constructor returns a fresh, zero-value Payload for one configured type.
// Registered constructors must return a distinct value each call — the
// registry never shares payload instances across records.
type Constructor func() Payload
