// Package reconciler implements the authoritative-side three-way merge of
// spec.md §4.8 (C8): given the authoritative record set, a client's
// LastSync, and that client's delta, it produces the post-merge hash and
// the TypeIndex the client must apply.
package reconciler

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/recordhash"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

// Reconciler wraps the authoritative store and runs the merge algorithm
// against it. It is not safe for concurrent use — the daemon serializes
// requests the same way the client-side engine serializes its own writes
// (spec.md §5's "single serialization point").
type Reconciler struct {
	store  *recordstore.Store
	logger *slog.Logger
}

// New wraps store as the authoritative side of the reconciliation protocol.
// A nil logger falls back to slog.Default().
func New(store *recordstore.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{store: store, logger: logger}
}

// Result is the reconcile/resolve response: the post-merge authoritative
// hash and the delta the client must apply (spec.md §4.8, §6).
type Result struct {
	Hash string
	Data recordstore.TypeIndex
}

// screened is one authoritative record or tombstone tentatively placed
// into a rank by the lastSync screen, before collision checking against
// the client's delta.
type screened struct {
	rank      recordstore.Rank
	record    *recordstore.Record
	tombstone *recordstore.Tombstone
}

// clientItem is one entry from the client's delta, tagged with the rank it
// arrived under.
type clientItem struct {
	rank  recordstore.Rank
	entry *recordstore.Entry
}

// Reconcile runs the merge described in spec.md §4.8 against clientDelta,
// mutating the authoritative store in place, and returns the resulting
// hash and the index the client should apply. It serves the `reconcile`
// wire query (§6); the daemon's `resolve` handler does not call it and
// applies the chosen versions to the store directly.
func (rc *Reconciler) Reconcile(lastSync recordstore.Timestamp, clientDelta recordstore.TypeIndex) (*Result, error) {
	cycle := uuid.NewString()
	response := recordstore.TypeIndex{}

	for _, typeName := range rc.store.Registry().Types() {
		if err := rc.reconcileType(cycle, typeName, lastSync, clientDelta[typeName], response); err != nil {
			return nil, err
		}
	}

	response.Prune()

	if conflicts := countConflicts(response); conflicts > 0 {
		rc.logger.Warn("reconcile produced conflicts", "cycle", cycle, "count", conflicts)
	}

	top, err := rc.store.ToCanonical()
	if err != nil {
		return nil, err
	}

	data, err := codec.Serialize(top)
	if err != nil {
		return nil, err
	}

	return &Result{Hash: recordhash.Sum(data), Data: response}, nil
}

func countConflicts(ti recordstore.TypeIndex) int {
	n := 0
	for _, ranks := range ti {
		n += len(ranks[recordstore.RankConflict])
	}

	return n
}

func (rc *Reconciler) reconcileType(cycle, typeName string, lastSync recordstore.Timestamp, clientRanks recordstore.RankIndex, response recordstore.TypeIndex) error {
	serverScreened := rc.screenAuthoritative(typeName, lastSync)
	clientById := flattenClientRanks(clientRanks)

	// Step 2: collide server-screened entries against the client's delta.
	for id, s := range serverScreened {
		c, collides := clientById[id]
		if !collides {
			continue
		}

		rc.logger.Debug("screened collision", "cycle", cycle, "type", typeName, "id", int64(id))

		response.Put(typeName, recordstore.RankConflict, id,
			recordstore.NewConflictEntry(screenedToConflict(s), clientItemToConflict(c)))

		delete(serverScreened, id)
		delete(clientById, id)
	}

	for id, s := range serverScreened {
		switch s.rank {
		case recordstore.RankNew, recordstore.RankModified:
			response.Put(typeName, s.rank, id, recordstore.NewRecordEntry(s.record))
		case recordstore.RankDeleted:
			response.Put(typeName, s.rank, id, recordstore.NewTombstoneEntry(s.tombstone))
		}
	}

	// Step 3: apply whatever of the client's delta didn't collide.
	for id, c := range clientById {
		var err error

		switch c.rank {
		case recordstore.RankNew:
			err = rc.applyClientNew(typeName, id, c.entry, response)
		case recordstore.RankModified:
			err = rc.applyClientModified(typeName, lastSync, id, c.entry, response)
		case recordstore.RankDeleted:
			err = rc.applyClientDeleted(typeName, id, c.entry, response)
		default:
			err = &Error{Type: typeName, Id: int64(id), Rank: string(c.rank), Msg: "unknown client rank"}
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func (rc *Reconciler) screenAuthoritative(typeName string, lastSync recordstore.Timestamp) map[recordstore.RecordId]screened {
	out := make(map[recordstore.RecordId]screened)

	for _, rec := range rc.store.Active(typeName) {
		switch {
		case rec.Created > lastSync:
			out[rec.Created] = screened{rank: recordstore.RankNew, record: rec}
		case rec.Modified > lastSync:
			out[rec.Created] = screened{rank: recordstore.RankModified, record: rec}
		}
	}

	for _, tomb := range rc.store.Tombstones(typeName) {
		if tomb.Deleted > lastSync {
			out[tomb.Created] = screened{rank: recordstore.RankDeleted, tombstone: tomb}
		}
	}

	return out
}

func flattenClientRanks(ranks recordstore.RankIndex) map[recordstore.RecordId]clientItem {
	out := make(map[recordstore.RecordId]clientItem)

	for rank, ids := range ranks {
		for id, entry := range ids {
			out[id] = clientItem{rank: rank, entry: entry}
		}
	}

	return out
}

func screenedToConflict(s screened) *recordstore.ConflictVersion {
	if s.tombstone != nil {
		return recordstore.ConflictFromTombstone(s.tombstone)
	}

	return recordstore.ConflictFromRecord(s.record)
}

func clientItemToConflict(c clientItem) *recordstore.ConflictVersion {
	if c.rank == recordstore.RankDeleted {
		return recordstore.ConflictFromTombstone(c.entry.Tombstone)
	}

	return recordstore.ConflictFromRecord(c.entry.Record)
}

// authoritativeVersion looks up any existing authoritative record or
// tombstone at id, independent of the lastSync screen — used to detect
// collisions the screen wouldn't catch because the authoritative side
// hasn't changed since lastSync.
func (rc *Reconciler) authoritativeVersion(typeName string, id recordstore.RecordId) *recordstore.ConflictVersion {
	if rec, ok := rc.store.Get(typeName, id); ok {
		return recordstore.ConflictFromRecord(rec)
	}

	for _, t := range rc.store.Tombstones(typeName) {
		if t.Created == id {
			return recordstore.ConflictFromTombstone(t)
		}
	}

	return nil
}

func (rc *Reconciler) applyClientNew(typeName string, id recordstore.RecordId, entry *recordstore.Entry, response recordstore.TypeIndex) error {
	if existing := rc.authoritativeVersion(typeName, id); existing != nil {
		response.Put(typeName, recordstore.RankConflict, id,
			recordstore.NewConflictEntry(existing, recordstore.ConflictFromRecord(entry.Record)))

		return nil
	}

	rec := entry.Record
	rec.Type = typeName

	return rc.store.Add(rec)
}

func (rc *Reconciler) applyClientModified(typeName string, lastSync recordstore.Timestamp, id recordstore.RecordId, entry *recordstore.Entry, response recordstore.TypeIndex) error {
	serverRec, ok := rc.store.Get(typeName, id)
	if !ok {
		response.Put(typeName, recordstore.RankConflict, id,
			recordstore.NewConflictEntry(rc.authoritativeVersion(typeName, id), recordstore.ConflictFromRecord(entry.Record)))

		return nil
	}

	uncontested := serverRec.Modified == recordstore.Absent || serverRec.Modified <= lastSync
	if uncontested && entry.Record.Modified > serverRec.Modified {
		return rc.store.Replace(typeName, id, entry.Record.Payload, entry.Record.Modified)
	}

	response.Put(typeName, recordstore.RankConflict, id,
		recordstore.NewConflictEntry(recordstore.ConflictFromRecord(serverRec), recordstore.ConflictFromRecord(entry.Record)))

	return nil
}

func (rc *Reconciler) applyClientDeleted(typeName string, id recordstore.RecordId, entry *recordstore.Entry, response recordstore.TypeIndex) error {
	if _, ok := rc.store.Get(typeName, id); ok {
		return rc.store.Remove(typeName, id, true, entry.Tombstone.Deleted)
	}

	response.Put(typeName, recordstore.RankConflict, id,
		recordstore.NewConflictEntry(rc.authoritativeVersion(typeName, id), recordstore.ConflictFromTombstone(entry.Tombstone)))

	return nil
}
