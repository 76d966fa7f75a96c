package syncengine

import (
	"fmt"
	"strconv"

	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
	"github.com/formulahunter/recordsync-go/internal/recordtype"
)

// orderedRanks is the fixed rank traversal order used when encoding a
// TypeIndex. Only the rank order is fixed: types and ids are emitted in Go
// map iteration order, so the output is not byte-stable. Unlike the
// record-set canonical form (§4.1) this exchange format is never hashed.
var orderedRanks = []recordstore.Rank{
	recordstore.RankNew, recordstore.RankModified, recordstore.RankDeleted, recordstore.RankConflict,
}

// EncodeTypeIndex renders a TypeIndex as the nested canonical-codec
// document exchanged over the wire: type → rank → id → record/tombstone
// (or, for conflict, a two-element array of versions).
func EncodeTypeIndex(ti recordstore.TypeIndex) (*codec.OrderedMap, error) {
	top := codec.NewOrderedMap()

	for typeName, ranks := range ti {
		rankObj := codec.NewOrderedMap()

		for _, rank := range orderedRanks {
			ids, ok := ranks[rank]
			if !ok || len(ids) == 0 {
				continue
			}

			idObj := codec.NewOrderedMap()

			for id, entry := range ids {
				val, err := encodeEntry(rank, entry)
				if err != nil {
					return nil, err
				}

				idObj.Set(strconv.FormatInt(int64(id), 10), val)
			}

			rankObj.Set(string(rank), idObj)
		}

		top.Set(typeName, rankObj)
	}

	return top, nil
}

func encodeEntry(rank recordstore.Rank, entry *recordstore.Entry) (any, error) {
	switch rank {
	case recordstore.RankNew, recordstore.RankModified:
		return recordstore.RecordToCanonical(entry.Record)
	case recordstore.RankDeleted:
		return recordstore.TombstoneToCanonical(entry.Tombstone), nil
	case recordstore.RankConflict:
		arr := make([]any, 0, len(entry.Conflict))

		for _, v := range entry.Conflict {
			arr = append(arr, encodeConflictVersion(v))
		}

		return arr, nil
	default:
		return nil, fmt.Errorf("syncengine: cannot encode unknown rank %q", rank)
	}
}

func encodeConflictVersion(v *recordstore.ConflictVersion) any {
	if v == nil {
		return nil
	}

	if v.IsDeleted() {
		return recordstore.TombstoneToCanonical(v.Tombstone)
	}

	obj, err := recordstore.RecordToCanonical(v.Record)
	if err != nil {
		return nil
	}

	return obj
}

// DecodeTypeIndex parses the wire document produced by EncodeTypeIndex back
// into a TypeIndex, instantiating record payloads via registry.
func DecodeTypeIndex(top *codec.OrderedMap, registry *recordtype.Registry) (recordstore.TypeIndex, error) {
	ti := recordstore.TypeIndex{}

	if top == nil {
		return ti, nil
	}

	for _, typeName := range top.Keys() {
		if !registry.Has(typeName) {
			return nil, &ReconcileError{Msg: fmt.Sprintf("unconfigured type %q in response", typeName)}
		}

		rankRaw, _ := top.Get(typeName)

		rankObj, ok := rankRaw.(*codec.OrderedMap)
		if !ok {
			return nil, &ReconcileError{Msg: fmt.Sprintf("type %q is not an object", typeName)}
		}

		for _, rankName := range rankObj.Keys() {
			rank := recordstore.Rank(rankName)

			idsRaw, _ := rankObj.Get(rankName)

			idsObj, ok := idsRaw.(*codec.OrderedMap)
			if !ok {
				return nil, &ReconcileError{Msg: fmt.Sprintf("rank %q is not an object", rankName)}
			}

			for _, idStr := range idsObj.Keys() {
				id, parseErr := strconv.ParseInt(idStr, 10, 64)
				if parseErr != nil {
					return nil, &ReconcileError{Msg: fmt.Sprintf("invalid id %q", idStr), Err: parseErr}
				}

				valRaw, _ := idsObj.Get(idStr)

				entry, err := decodeEntry(typeName, rank, valRaw, registry)
				if err != nil {
					return nil, err
				}

				ti.Put(typeName, rank, recordstore.RecordId(id), entry)
			}
		}
	}

	return ti, nil
}

func decodeEntry(typeName string, rank recordstore.Rank, valRaw any, registry *recordtype.Registry) (*recordstore.Entry, error) {
	switch rank {
	case recordstore.RankNew, recordstore.RankModified:
		obj, ok := valRaw.(*codec.OrderedMap)
		if !ok {
			return nil, &ReconcileError{Msg: "record entry is not an object"}
		}

		rec, err := recordstore.RecordFromCanonical(typeName, obj, registry)
		if err != nil {
			return nil, err
		}

		return recordstore.NewRecordEntry(rec), nil

	case recordstore.RankDeleted:
		obj, ok := valRaw.(*codec.OrderedMap)
		if !ok {
			return nil, &ReconcileError{Msg: "tombstone entry is not an object"}
		}

		tomb, err := recordstore.TombstoneFromCanonical(obj)
		if err != nil {
			return nil, err
		}

		return recordstore.NewTombstoneEntry(tomb), nil

	case recordstore.RankConflict:
		arr, ok := valRaw.([]any)
		if !ok {
			return nil, &ReconcileError{Msg: "conflict entry is not an array"}
		}

		versions := make([]*recordstore.ConflictVersion, 0, len(arr))

		for _, item := range arr {
			v, err := decodeConflictVersion(typeName, item, registry)
			if err != nil {
				return nil, err
			}

			versions = append(versions, v)
		}

		return recordstore.NewConflictEntry(versions...), nil

	default:
		return nil, &ReconcileError{Msg: fmt.Sprintf("unknown rank %q", rank)}
	}
}

func decodeConflictVersion(typeName string, item any, registry *recordtype.Registry) (*recordstore.ConflictVersion, error) {
	if item == nil {
		return nil, nil
	}

	obj, ok := item.(*codec.OrderedMap)
	if !ok {
		return nil, &ReconcileError{Msg: "conflict version is not an object"}
	}

	if _, isTombstone := obj.Get("_deleted"); isTombstone {
		t, err := recordstore.TombstoneFromCanonical(obj)
		if err != nil {
			return nil, err
		}

		return recordstore.ConflictFromTombstone(t), nil
	}

	r, err := recordstore.RecordFromCanonical(typeName, obj, registry)
	if err != nil {
		return nil, err
	}

	return recordstore.ConflictFromRecord(r), nil
}
