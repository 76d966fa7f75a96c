// Package recordstore implements the typed record containers described in
// spec.md §3 and §4.5: per-type active/tombstone sequences, ID assignment,
// and the mutation operations (add/replace/remove) that keep the
// descending-created sort invariant.
package recordstore

import (
	"time"

	"github.com/formulahunter/recordsync-go/internal/recordtype"
)

// Timestamp is milliseconds since epoch. Zero means "absent" — never
// synced, never modified, never deleted (spec.md §3).
type Timestamp int64

// Absent is the reserved zero value meaning "not set."
const Absent Timestamp = 0

// Now returns the current time as a Timestamp. Store and engine code should
// prefer an injected clock over calling this directly, so tests stay
// deterministic.
func Now() Timestamp {
	return Timestamp(time.Now().UnixMilli())
}

// RecordId is a record's creation timestamp, doubling as its unique
// identifier within a type (spec.md §3).
type RecordId = Timestamp

// Record is a single tracked item: the two intrinsic timestamp fields plus
// an application payload. Records are polymorphic over the type set
// configured at store construction (recordtype.Registry); Type names which
// container holds this record.
type Record struct {
	Type     string
	Created  RecordId
	Modified Timestamp // Absent if never modified; must be > Created otherwise.
	Payload  recordtype.Payload
}

// Tombstone is the compact remainder of a deleted record: identity plus
// deletion time. The payload is discarded (spec.md §3).
type Tombstone struct {
	Created RecordId
	Deleted Timestamp
}

// Rank classifies a delta or reconciliation entry (spec.md §3).
type Rank string

// The four activity ranks. Conflict is never produced by the delta compiler
// (C6) — only the reconciler (C8) introduces it.
const (
	RankNew      Rank = "new"
	RankModified Rank = "modified"
	RankDeleted  Rank = "deleted"
	RankConflict Rank = "conflict"
)

// Entry is one IdIndex value. Exactly one of Record, Tombstone, or Conflict
// is populated, matching the rank it's stored under — a tagged variant in
// place of the source's dynamic dict-of-whatever (§9 design notes).
type Entry struct {
	Record    *Record           // populated for RankNew / RankModified
	Tombstone *Tombstone        // populated for RankDeleted
	Conflict  []*ConflictVersion // populated for RankConflict: [server, client, ...]
}

// ConflictVersion is one side of a conflict: either a live record or a
// tombstone, since a conflicting pair can be an edit against a deletion as
// easily as an edit against an edit.
type ConflictVersion struct {
	Record    *Record
	Tombstone *Tombstone
}

// IsDeleted reports whether this version of the conflict is a tombstone.
func (v *ConflictVersion) IsDeleted() bool {
	return v.Tombstone != nil
}

// ConflictFromRecord wraps a live record as a conflict version.
func ConflictFromRecord(r *Record) *ConflictVersion {
	return &ConflictVersion{Record: r}
}

// ConflictFromTombstone wraps a tombstone as a conflict version.
func ConflictFromTombstone(t *Tombstone) *ConflictVersion {
	return &ConflictVersion{Tombstone: t}
}

// NewRecordEntry wraps a record for the new/modified ranks.
func NewRecordEntry(r *Record) *Entry {
	return &Entry{Record: r}
}

// NewTombstoneEntry wraps a tombstone for the deleted rank.
func NewTombstoneEntry(t *Tombstone) *Entry {
	return &Entry{Tombstone: t}
}

// NewConflictEntry wraps the conflicting versions for the conflict rank.
func NewConflictEntry(versions ...*ConflictVersion) *Entry {
	return &Entry{Conflict: versions}
}

// IdIndex maps a RecordId to its entry within one (type, rank) partition.
type IdIndex map[RecordId]*Entry

// RankIndex maps a rank to its IdIndex within one type.
type RankIndex map[Rank]IdIndex

// TypeIndex maps a type name to its RankIndex. This is the delta/reconcile
// exchange format of spec.md §3: type → rank → id → record.
type TypeIndex map[string]RankIndex

// Put records entry under (typeName, rank, id), creating intermediate maps
// as needed.
func (ti TypeIndex) Put(typeName string, rank Rank, id RecordId, entry *Entry) {
	ranks, ok := ti[typeName]
	if !ok {
		ranks = make(RankIndex)
		ti[typeName] = ranks
	}

	ids, ok := ranks[rank]
	if !ok {
		ids = make(IdIndex)
		ranks[rank] = ids
	}

	ids[id] = entry
}

// Prune removes every empty rank partition and every type left with no
// ranks, per spec.md §3 ("empty partitions are pruned").
func (ti TypeIndex) Prune() {
	for typeName, ranks := range ti {
		for rank, ids := range ranks {
			if len(ids) == 0 {
				delete(ranks, rank)
			}
		}

		if len(ranks) == 0 {
			delete(ti, typeName)
		}
	}
}

// IsEmpty reports whether the index has no entries at all after pruning.
func (ti TypeIndex) IsEmpty() bool {
	for _, ranks := range ti {
		if len(ranks) > 0 {
			return false
		}
	}

	return true
}
