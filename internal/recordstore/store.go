package recordstore

import (
	"sort"

	"github.com/formulahunter/recordsync-go/internal/recordtype"
)

// container holds one type's two ordered sequences: active records and
// tombstones, each kept sorted descending by Created (spec.md §3).
type container struct {
	active     []*Record
	tombstones []*Tombstone
}

// Store is the in-memory record set for one client or one authoritative
// side (spec.md §3, C5). It is not safe for concurrent use; callers
// serialize access the way the sync engine's single-writer model requires
// (spec.md §4.7).
type Store struct {
	registry   *recordtype.Registry
	containers map[string]*container
	maxId      RecordId
	now        func() Timestamp
}

// Option configures a Store at construction.
type Option func(*Store)

// WithClock overrides the store's time source. Tests use this to get
// deterministic IDs instead of wall-clock time.
func WithClock(now func() Timestamp) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore builds an empty store for the types configured in registry.
func NewStore(registry *recordtype.Registry, opts ...Option) *Store {
	s := &Store{
		registry:   registry,
		containers: make(map[string]*container, len(registry.Types())),
		now:        Now,
	}

	for _, t := range registry.Types() {
		s.containers[t] = &container{}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Registry returns the store's type registry.
func (s *Store) Registry() *recordtype.Registry {
	return s.registry
}

// NewID returns max(now(), maxId+1) and advances maxId to the returned
// value, guaranteeing every id this store hands out is both fresh and
// strictly greater than every id it has seen so far (spec.md §4.5).
func (s *Store) NewID() RecordId {
	candidate := s.maxId + 1
	if n := RecordId(s.now()); n > candidate {
		candidate = n
	}

	s.maxId = candidate

	return candidate
}

// MaxId returns the highest created timestamp the store has observed,
// whether from NewID, Add, or LoadFromCanonical.
func (s *Store) MaxId() RecordId {
	return s.maxId
}

func (s *Store) container(typeName string) (*container, error) {
	c, ok := s.containers[typeName]
	if !ok {
		return nil, &TypeError{Type: typeName}
	}

	return c, nil
}

func (c *container) hasId(id RecordId) bool {
	for _, r := range c.active {
		if r.Created == id {
			return true
		}
	}

	for _, t := range c.tombstones {
		if t.Created == id {
			return true
		}
	}

	return false
}

func sortRecordsDesc(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Created > records[j].Created
	})
}

func sortTombstonesDesc(tombstones []*Tombstone) {
	sort.SliceStable(tombstones, func(i, j int) bool {
		return tombstones[i].Created > tombstones[j].Created
	})
}

// Add inserts a new active record, maintaining the descending-created sort
// invariant, and raises maxId if the record's Created exceeds it. Fails
// with TypeError if rec.Type isn't configured, or IdConflictError if
// rec.Created is already in use by an active record or tombstone of that
// type.
func (s *Store) Add(rec *Record) error {
	c, err := s.container(rec.Type)
	if err != nil {
		return err
	}

	if c.hasId(rec.Created) {
		return &IdConflictError{Type: rec.Type, Id: rec.Created}
	}

	c.active = append(c.active, rec)
	sortRecordsDesc(c.active)

	if rec.Created > s.maxId {
		s.maxId = rec.Created
	}

	return nil
}

// Replace overwrites the payload and Modified timestamp of the active
// record identified by (typeName, id). Created is immutable and therefore
// not supplied. Fails with TypeError or NoMatchError.
func (s *Store) Replace(typeName string, id RecordId, payload recordtype.Payload, modified Timestamp) error {
	c, err := s.container(typeName)
	if err != nil {
		return err
	}

	for _, r := range c.active {
		if r.Created == id {
			r.Payload = payload
			r.Modified = modified
			return nil
		}
	}

	return &NoMatchError{Type: typeName, Id: id}
}

// Remove deletes the active record identified by (typeName, id). When
// tombstone is true, a Tombstone{Created: id, Deleted: deletedAt} is kept
// in its place (spec.md §3); when false the record vanishes with no trace.
// Fails with TypeError or NoMatchError.
func (s *Store) Remove(typeName string, id RecordId, tombstone bool, deletedAt Timestamp) error {
	c, err := s.container(typeName)
	if err != nil {
		return err
	}

	idx := -1
	for i, r := range c.active {
		if r.Created == id {
			idx = i
			break
		}
	}

	if idx == -1 {
		return &NoMatchError{Type: typeName, Id: id}
	}

	c.active = append(c.active[:idx], c.active[idx+1:]...)

	if tombstone {
		c.tombstones = append(c.tombstones, &Tombstone{Created: id, Deleted: deletedAt})
		sortTombstonesDesc(c.tombstones)
	}

	return nil
}

// Get returns the active record identified by (typeName, id), if present.
func (s *Store) Get(typeName string, id RecordId) (*Record, bool) {
	c, ok := s.containers[typeName]
	if !ok {
		return nil, false
	}

	for _, r := range c.active {
		if r.Created == id {
			return r, true
		}
	}

	return nil, false
}

// Active returns the active records of typeName, sorted descending by
// Created. The returned slice is a copy; mutating it does not affect the
// store.
func (s *Store) Active(typeName string) []*Record {
	c, ok := s.containers[typeName]
	if !ok {
		return nil
	}

	out := make([]*Record, len(c.active))
	copy(out, c.active)

	return out
}

// Tombstones returns the tombstones of typeName, sorted descending by
// Created. The returned slice is a copy.
func (s *Store) Tombstones(typeName string) []*Tombstone {
	c, ok := s.containers[typeName]
	if !ok {
		return nil
	}

	out := make([]*Tombstone, len(c.tombstones))
	copy(out, c.tombstones)

	return out
}
