// Package noterecord is a demonstration application record type: a plain
// text note. The sync core is payload-agnostic (recordtype.Payload is
// injected by the application); this package gives the CLI and daemon one
// concrete type to exercise it with.
package noterecord

import (
	"fmt"

	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/recordtype"
)

// TypeName is the registry key this payload is configured under.
const TypeName = "note"

// Note is a single free-text note.
type Note struct {
	Text string
}

// New constructs a zero-value Note, satisfying recordtype.Constructor.
func New() recordtype.Payload {
	return &Note{}
}

func (n *Note) MarshalCanonical() (*codec.OrderedMap, error) {
	return codec.NewOrderedMap().Set("text", n.Text), nil
}

func (n *Note) UnmarshalCanonical(fields *codec.OrderedMap) error {
	raw, ok := fields.Get("text")
	if !ok {
		return fmt.Errorf("noterecord: missing field %q", "text")
	}

	text, ok := raw.(string)
	if !ok {
		return fmt.Errorf("noterecord: field %q is not a string", "text")
	}

	n.Text = text

	return nil
}

func (n *Note) Equal(other recordtype.Payload) bool {
	o, ok := other.(*Note)
	return ok && o.Text == n.Text
}

func (n *Note) String() string {
	return n.Text
}

// Registry builds the single-type recordtype.Registry the CLI and daemon
// configure the store with.
func Registry() (*recordtype.Registry, error) {
	return recordtype.NewRegistry([]recordtype.TypeDef{
		{Name: TypeName, New: New},
	})
}
