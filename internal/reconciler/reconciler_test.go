package reconciler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/reconciler"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
	"github.com/formulahunter/recordsync-go/internal/recordtype"
)

type notePayload struct{ Text string }

func (n *notePayload) MarshalCanonical() (*codec.OrderedMap, error) {
	return codec.NewOrderedMap().Set("text", n.Text), nil
}

func (n *notePayload) UnmarshalCanonical(fields *codec.OrderedMap) error {
	v, _ := fields.Get("text")
	n.Text, _ = v.(string)
	return nil
}

func (n *notePayload) Equal(other recordtype.Payload) bool {
	o, ok := other.(*notePayload)
	return ok && o.Text == n.Text
}

func (n *notePayload) String() string { return n.Text }

func newRegistry(t *testing.T) *recordtype.Registry {
	t.Helper()

	reg, err := recordtype.NewRegistry([]recordtype.TypeDef{
		{Name: "note", New: func() recordtype.Payload { return &notePayload{} }},
	})
	require.NoError(t, err)

	return reg
}

func TestReconcile_ClientNewWithNoCollisionIsApplied(t *testing.T) {
	reg := newRegistry(t)
	authoritative := recordstore.NewStore(reg)
	rc := reconciler.New(authoritative, nil)

	clientDelta := recordstore.TypeIndex{}
	clientDelta.Put("note", recordstore.RankNew, 500,
		recordstore.NewRecordEntry(&recordstore.Record{Created: 500, Payload: &notePayload{Text: "hi"}}))

	result, err := rc.Reconcile(0, clientDelta)
	require.NoError(t, err)

	rec, ok := authoritative.Get("note", 500)
	require.True(t, ok)
	assert.Equal(t, "hi", rec.Payload.(*notePayload).Text)
	assert.True(t, result.Data.IsEmpty())
}

func TestReconcile_ClientNewCollidesWithExistingBecomesConflict(t *testing.T) {
	reg := newRegistry(t)
	authoritative := recordstore.NewStore(reg)
	require.NoError(t, authoritative.Add(&recordstore.Record{Type: "note", Created: 100, Payload: &notePayload{Text: "server"}}))

	rc := reconciler.New(authoritative, nil)

	clientDelta := recordstore.TypeIndex{}
	clientDelta.Put("note", recordstore.RankNew, 100,
		recordstore.NewRecordEntry(&recordstore.Record{Created: 100, Payload: &notePayload{Text: "client"}}))

	result, err := rc.Reconcile(0, clientDelta)
	require.NoError(t, err)

	conflicts := result.Data["note"][recordstore.RankConflict]
	require.Contains(t, conflicts, recordstore.RecordId(100))
}

func TestReconcile_ConflictingEditsBothChanged(t *testing.T) {
	reg := newRegistry(t)
	authoritative := recordstore.NewStore(reg)
	require.NoError(t, authoritative.Add(&recordstore.Record{
		Type: "note", Created: 100, Modified: 400, Payload: &notePayload{Text: "server-edit"},
	}))

	rc := reconciler.New(authoritative, nil)

	clientDelta := recordstore.TypeIndex{}
	clientDelta.Put("note", recordstore.RankModified, 100,
		recordstore.NewRecordEntry(&recordstore.Record{Created: 100, Modified: 500, Payload: &notePayload{Text: "client-edit"}}))

	result, err := rc.Reconcile(150, clientDelta)
	require.NoError(t, err)

	conflicts := result.Data["note"][recordstore.RankConflict]
	require.Contains(t, conflicts, recordstore.RecordId(100))

	entry := conflicts[100]
	require.Len(t, entry.Conflict, 2)

	rec, ok := authoritative.Get("note", 100)
	require.True(t, ok)
	assert.Equal(t, "server-edit", rec.Payload.(*notePayload).Text, "conflicting edit must not overwrite the authoritative record")
}

func TestReconcile_ClientModifiedAppliesWhenUncontested(t *testing.T) {
	reg := newRegistry(t)
	authoritative := recordstore.NewStore(reg)
	require.NoError(t, authoritative.Add(&recordstore.Record{
		Type: "note", Created: 100, Modified: 100, Payload: &notePayload{Text: "original"},
	}))

	rc := reconciler.New(authoritative, nil)

	clientDelta := recordstore.TypeIndex{}
	clientDelta.Put("note", recordstore.RankModified, 100,
		recordstore.NewRecordEntry(&recordstore.Record{Created: 100, Modified: 300, Payload: &notePayload{Text: "updated"}}))

	_, err := rc.Reconcile(150, clientDelta)
	require.NoError(t, err)

	rec, ok := authoritative.Get("note", 100)
	require.True(t, ok)
	assert.Equal(t, "updated", rec.Payload.(*notePayload).Text)
}

func TestReconcile_ClientDeleteRemovesMatchingRecord(t *testing.T) {
	reg := newRegistry(t)
	authoritative := recordstore.NewStore(reg)
	require.NoError(t, authoritative.Add(&recordstore.Record{Type: "note", Created: 100, Payload: &notePayload{}}))

	rc := reconciler.New(authoritative, nil)

	clientDelta := recordstore.TypeIndex{}
	clientDelta.Put("note", recordstore.RankDeleted, 100, recordstore.NewTombstoneEntry(&recordstore.Tombstone{Created: 100, Deleted: 900}))

	_, err := rc.Reconcile(150, clientDelta)
	require.NoError(t, err)

	_, ok := authoritative.Get("note", 100)
	assert.False(t, ok)

	tombstones := authoritative.Tombstones("note")
	require.Len(t, tombstones, 1)
}

func TestReconcile_ServerSideChangesAppearInResponse(t *testing.T) {
	reg := newRegistry(t)
	authoritative := recordstore.NewStore(reg)
	require.NoError(t, authoritative.Add(&recordstore.Record{Type: "note", Created: 200, Payload: &notePayload{Text: "from-server"}}))

	rc := reconciler.New(authoritative, nil)

	result, err := rc.Reconcile(0, recordstore.TypeIndex{})
	require.NoError(t, err)

	newEntries := result.Data["note"][recordstore.RankNew]
	require.Contains(t, newEntries, recordstore.RecordId(200))
	assert.NotEmpty(t, result.Hash)
}

func TestReconcile_EveryIdEndsUpExactlyOnce(t *testing.T) {
	reg := newRegistry(t)
	authoritative := recordstore.NewStore(reg)
	require.NoError(t, authoritative.Add(&recordstore.Record{Type: "note", Created: 1, Payload: &notePayload{Text: "a"}}))

	rc := reconciler.New(authoritative, nil)

	clientDelta := recordstore.TypeIndex{}
	clientDelta.Put("note", recordstore.RankNew, 2, recordstore.NewRecordEntry(&recordstore.Record{Created: 2, Payload: &notePayload{Text: "b"}}))

	result, err := rc.Reconcile(0, clientDelta)
	require.NoError(t, err)

	_, appliedAsNewClient := authoritative.Get("note", 2)
	assert.True(t, appliedAsNewClient)

	_, inResponseAsNew := result.Data["note"][recordstore.RankNew][1]
	assert.True(t, inResponseAsNew, "server's pre-existing record must surface in the response since client didn't know about it")
}
