// Package delta compiles a store's activity relative to a reference
// timestamp into the type/rank/id index exchanged with the remote store
// (spec.md §4.6, C6).
package delta

import (
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

// Compile classifies every record and tombstone in store relative to
// since: records with Created > since are "new"; records with
// Created <= since but Modified > since are "modified"; tombstones with
// Deleted > since are "deleted". Everything older is omitted. Empty
// partitions are pruned before return (spec.md §3, §4.6).
func Compile(store *recordstore.Store, since recordstore.Timestamp) recordstore.TypeIndex {
	index := recordstore.TypeIndex{}

	for _, typeName := range store.Registry().Types() {
		for _, rec := range store.Active(typeName) {
			switch {
			case rec.Created > since:
				index.Put(typeName, recordstore.RankNew, rec.Created, recordstore.NewRecordEntry(rec))
			case rec.Modified > since:
				index.Put(typeName, recordstore.RankModified, rec.Created, recordstore.NewRecordEntry(rec))
			}
		}

		for _, tomb := range store.Tombstones(typeName) {
			if tomb.Deleted > since {
				index.Put(typeName, recordstore.RankDeleted, tomb.Created, recordstore.NewTombstoneEntry(tomb))
			}
		}
	}

	index.Prune()

	return index
}
