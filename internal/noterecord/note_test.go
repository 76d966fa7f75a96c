package noterecord_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/noterecord"
)

func TestNote_CanonicalRoundTrip(t *testing.T) {
	n := &noterecord.Note{Text: "buy milk"}

	fields, err := n.MarshalCanonical()
	require.NoError(t, err)

	got := &noterecord.Note{}
	require.NoError(t, got.UnmarshalCanonical(fields))
	assert.True(t, n.Equal(got))
}

func TestNote_UnmarshalCanonical_RejectsMissingField(t *testing.T) {
	n := &noterecord.Note{}

	err := n.UnmarshalCanonical(codec.NewOrderedMap())
	assert.Error(t, err)
}

func TestNote_UnmarshalCanonical_RejectsNonStringField(t *testing.T) {
	n := &noterecord.Note{}

	err := n.UnmarshalCanonical(codec.NewOrderedMap().Set("text", int64(5)))
	assert.Error(t, err)
}

func TestNote_Equal_DifferentTypeIsFalse(t *testing.T) {
	n := &noterecord.Note{Text: "x"}
	assert.False(t, n.Equal(nil))
}

func TestNote_String_ReturnsText(t *testing.T) {
	n := &noterecord.Note{Text: "reminder"}
	assert.Equal(t, "reminder", n.String())
}

func TestRegistry_ContainsNoteType(t *testing.T) {
	reg, err := noterecord.Registry()
	require.NoError(t, err)
	assert.True(t, reg.Has(noterecord.TypeName))
}
