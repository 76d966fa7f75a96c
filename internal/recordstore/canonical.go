package recordstore

import (
	"sort"

	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/recordtype"
)

const (
	fieldCreated  = "_created"
	fieldModified = "_modified"
	fieldDeleted  = "_deleted"
)

// ToCanonical renders the full store as the top-level mapping described in
// spec.md §4.1: type names in configured order, each mapped to a single
// sequence merging that type's active records and tombstones, sorted
// descending by Created. Tombstones must appear in this sequence — a
// deletion has to change the store's hash, or two clients could diverge
// silently on one of them deleting a record (spec.md §3 Invariant 3).
func (s *Store) ToCanonical() (*codec.OrderedMap, error) {
	top := codec.NewOrderedMap()

	for _, typeName := range s.registry.Types() {
		c := s.containers[typeName]

		items := make([]canonicalItem, 0, len(c.active)+len(c.tombstones))

		for _, r := range c.active {
			obj, err := recordToCanonical(r)
			if err != nil {
				return nil, err
			}

			items = append(items, canonicalItem{created: r.Created, obj: obj})
		}

		for _, t := range c.tombstones {
			items = append(items, canonicalItem{created: t.Created, obj: tombstoneToCanonical(t)})
		}

		sort.SliceStable(items, func(i, j int) bool {
			return items[i].created > items[j].created
		})

		arr := make([]any, len(items))
		for i, item := range items {
			arr[i] = item.obj
		}

		top.Set(typeName, arr)
	}

	return top, nil
}

type canonicalItem struct {
	created RecordId
	obj     *codec.OrderedMap
}

// RecordToCanonical renders a single record the way ToCanonical renders
// each element of its per-type sequence. Exported for callers (the sync
// transport) that exchange individual records rather than a whole store.
func RecordToCanonical(r *Record) (*codec.OrderedMap, error) {
	return recordToCanonical(r)
}

// TombstoneToCanonical renders a single tombstone as {_created, _deleted}.
func TombstoneToCanonical(t *Tombstone) *codec.OrderedMap {
	return tombstoneToCanonical(t)
}

// RecordFromCanonical parses a single canonical record object back into a
// Record, instantiating its payload from registry.
func RecordFromCanonical(typeName string, elem *codec.OrderedMap, registry *recordtype.Registry) (*Record, error) {
	return recordFromCanonical(typeName, elem, registry)
}

// TombstoneFromCanonical parses a single canonical tombstone object.
func TombstoneFromCanonical(elem *codec.OrderedMap) (*Tombstone, error) {
	return tombstoneFromCanonical(elem)
}

func recordToCanonical(r *Record) (*codec.OrderedMap, error) {
	fields, err := r.Payload.MarshalCanonical()
	if err != nil {
		return nil, err
	}

	obj := codec.NewOrderedMap().Set(fieldCreated, int64(r.Created))
	if r.Modified != Absent {
		obj.Set(fieldModified, int64(r.Modified))
	}

	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		obj.Set(k, v)
	}

	return obj, nil
}

func tombstoneToCanonical(t *Tombstone) *codec.OrderedMap {
	return codec.NewOrderedMap().
		Set(fieldCreated, int64(t.Created)).
		Set(fieldDeleted, int64(t.Deleted))
}

// LoadFromCanonical bulk-loads the store from the top-level mapping
// produced by ToCanonical: for each configured type, each element is
// either a tombstone (has a _deleted field) or a record (instantiated via
// the store's registry and unmarshaled through the payload's
// UnmarshalCanonical). maxId is raised to the observed maximum across both
// kinds (spec.md §4.5).
func (s *Store) LoadFromCanonical(value any) error {
	top, ok := value.(*codec.OrderedMap)
	if !ok {
		return &TypeError{Type: "<non-object top level>"}
	}

	for _, typeName := range top.Keys() {
		if !s.registry.Has(typeName) {
			return &TypeError{Type: typeName}
		}

		rawArr, _ := top.Get(typeName)
		arr, ok := rawArr.([]any)
		if !ok {
			return &TypeError{Type: typeName}
		}

		c := s.containers[typeName]

		for _, rawElem := range arr {
			elem, ok := rawElem.(*codec.OrderedMap)
			if !ok {
				return &TypeError{Type: typeName}
			}

			if _, isTombstone := elem.Get(fieldDeleted); isTombstone {
				tomb, err := tombstoneFromCanonical(elem)
				if err != nil {
					return err
				}

				c.tombstones = append(c.tombstones, tomb)

				if tomb.Created > s.maxId {
					s.maxId = tomb.Created
				}

				continue
			}

			rec, err := recordFromCanonical(typeName, elem, s.registry)
			if err != nil {
				return err
			}

			if err := s.Add(rec); err != nil {
				return err
			}
		}

		sortRecordsDesc(c.active)
		sortTombstonesDesc(c.tombstones)
	}

	return nil
}

func tombstoneFromCanonical(elem *codec.OrderedMap) (*Tombstone, error) {
	created, err := intField(elem, fieldCreated)
	if err != nil {
		return nil, err
	}

	deleted, err := intField(elem, fieldDeleted)
	if err != nil {
		return nil, err
	}

	return &Tombstone{Created: RecordId(created), Deleted: Timestamp(deleted)}, nil
}

func recordFromCanonical(typeName string, elem *codec.OrderedMap, registry *recordtype.Registry) (*Record, error) {
	created, err := intField(elem, fieldCreated)
	if err != nil {
		return nil, err
	}

	var modified int64
	if raw, ok := elem.Get(fieldModified); ok {
		modified, err = asInt64(raw)
		if err != nil {
			return nil, err
		}
	}

	payload, ok := registry.New(typeName)
	if !ok {
		return nil, &TypeError{Type: typeName}
	}

	if err := payload.UnmarshalCanonical(stripIntrinsic(elem)); err != nil {
		return nil, err
	}

	return &Record{
		Type:     typeName,
		Created:  RecordId(created),
		Modified: Timestamp(modified),
		Payload:  payload,
	}, nil
}

func stripIntrinsic(elem *codec.OrderedMap) *codec.OrderedMap {
	out := codec.NewOrderedMap()

	for _, k := range elem.Keys() {
		if k == fieldCreated || k == fieldModified || k == fieldDeleted {
			continue
		}

		v, _ := elem.Get(k)
		out.Set(k, v)
	}

	return out
}

func intField(elem *codec.OrderedMap, key string) (int64, error) {
	raw, ok := elem.Get(key)
	if !ok {
		return 0, &TypeError{Type: "<missing " + key + ">"}
	}

	return asInt64(raw)
}

func asInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, &TypeError{Type: "<non-numeric intrinsic field>"}
	}
}
