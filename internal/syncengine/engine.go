package syncengine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/formulahunter/recordsync-go/internal/cache"
	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/delta"
	"github.com/formulahunter/recordsync-go/internal/recordhash"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
)

// Engine drives the fixed sync pipeline of spec.md §4.7: one *Store, one
// *cache.LocalCache, one RemoteClient. It is single-writer per client — the
// mutex is held for the full duration of every public operation (init,
// save, edit, delete, sync), matching spec.md §5.
type Engine struct {
	mu sync.Mutex

	store  *recordstore.Store
	cache  *cache.LocalCache
	remote RemoteClient
	logger *slog.Logger

	lastSync      recordstore.Timestamp
	lastConflicts recordstore.TypeIndex

	confirm func(ctx context.Context) (bool, error)
}

// Option configures optional Engine behavior, matching recordstore.Store's
// functional-option pattern (WithClock).
type Option func(*Engine)

// WithConfirmer installs a callback Init consults before reloading from the
// remote store on a cold start (spec.md §9 Open Question 1 — the source
// leaves this UX unspecified). A nil confirm (the default) always proceeds.
func WithConfirmer(confirm func(ctx context.Context) (bool, error)) Option {
	return func(e *Engine) { e.confirm = confirm }
}

// NewEngine wires a Store, LocalCache, and RemoteClient into one Engine. A
// nil logger falls back to slog.Default.
func NewEngine(store *recordstore.Store, c *cache.LocalCache, remote RemoteClient, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{store: store, cache: c, remote: remote, logger: logger}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Init performs the store's cold start (spec.md §4.7 scenario S1): load
// K-data if present, otherwise start from an empty store, then run a
// preliminary sync to establish LastSync. When K-data is absent and a
// Confirmer is installed, Init asks before pulling the remote store's full
// contents into the newly-empty local one; a decline leaves the store empty
// and returns without syncing.
func (e *Engine) Init(ctx context.Context) (*SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plaintext, _, found, err := e.cache.ReadData(ctx)
	if err != nil {
		return nil, wrapState(StateIdle, err)
	}

	if found {
		value, err := codec.Parse(plaintext)
		if err != nil {
			return nil, wrapState(StateIdle, err)
		}

		if err := e.store.LoadFromCanonical(value); err != nil {
			return nil, wrapState(StateIdle, err)
		}
	}

	if ts, found, err := e.cache.ReadSync(ctx); err != nil {
		return nil, wrapState(StateIdle, err)
	} else if found {
		e.lastSync = ts
	}

	if !found && e.confirm != nil {
		proceed, err := e.confirm(ctx)
		if err != nil {
			return nil, wrapState(StateIdle, err)
		}

		if !proceed {
			e.logger.Info("init: remote reload declined, starting from an empty store")

			return &SyncResult{Succeeds: false}, nil
		}
	}

	return e.sync(ctx, "", "")
}

// Save runs a preliminary sync to freshen LastSync, then assigns a new ID,
// adds the record locally, writes the local write and the remote add query
// in parallel, and concludes with a second sync (spec.md §4.7 "save"). The
// preliminary sync keeps the delta the concluding sync compiles from
// reflecting the authoritative store as it stood just before this record
// was assigned an ID — without it, a stale LastSync makes the reconciler
// see this client's own new record as a collision against itself.
func (e *Engine) Save(ctx context.Context, typeName string, rec *recordstore.Record) (*SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if result, err := e.sync(ctx, "", ""); err != nil {
		return nil, err
	} else if !result.Succeeds {
		return result, nil
	}

	rec.Type = typeName
	rec.Created = e.store.NewID()

	if err := e.store.Add(rec); err != nil {
		return nil, wrapState(StateComparing, err)
	}

	return e.writeThrough(ctx, "add", typeName, rec)
}

// Edit runs the same preliminary sync as Save, sets the record's modified
// timestamp, replaces it in the store, and is otherwise symmetric with Save
// (spec.md §4.7 "edit").
func (e *Engine) Edit(ctx context.Context, typeName string, rec *recordstore.Record) (*SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if result, err := e.sync(ctx, "", ""); err != nil {
		return nil, err
	} else if !result.Succeeds {
		return result, nil
	}

	rec.Modified = recordstore.Now()

	if err := e.store.Replace(typeName, rec.Created, rec.Payload, rec.Modified); err != nil {
		return nil, wrapState(StateComparing, err)
	}

	return e.writeThrough(ctx, "edit", typeName, rec)
}

// Delete runs the same preliminary sync as Save, tombstones the record
// locally, POSTs a delete query remotely, and is otherwise symmetric with
// Save/Edit (spec.md §4.7 "delete").
func (e *Engine) Delete(ctx context.Context, typeName string, rec *recordstore.Record) (*SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if result, err := e.sync(ctx, "", ""); err != nil {
		return nil, err
	} else if !result.Succeeds {
		return result, nil
	}

	if err := e.store.Remove(typeName, rec.Created, true, recordstore.Now()); err != nil {
		return nil, wrapState(StateComparing, err)
	}

	return e.writeThrough(ctx, "delete", typeName, rec)
}

// writeThrough performs the local cache write and the matching remote
// mutation query in parallel, then runs the concluding sync with both
// resulting hashes (spec.md §5's local-write/remote-POST parallelism).
func (e *Engine) writeThrough(ctx context.Context, query, typeName string, rec *recordstore.Record) (*SyncResult, error) {
	top, err := e.store.ToCanonical()
	if err != nil {
		return nil, wrapState(StateComparing, err)
	}

	plaintext, err := codec.Serialize(top)
	if err != nil {
		return nil, wrapState(StateComparing, err)
	}

	var localHash, remoteHash string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h, err := e.cache.WriteData(gctx, plaintext)
		if err != nil {
			return err
		}

		localHash = h

		return nil
	})

	g.Go(func() error {
		var (
			h   string
			err error
		)

		switch query {
		case "add":
			h, err = e.remote.Add(gctx, typeName, rec)
		case "edit":
			h, err = e.remote.Edit(gctx, typeName, rec)
		case "delete":
			h, err = e.remote.Delete(gctx, typeName, rec)
		}

		if err != nil {
			return err
		}

		remoteHash = h

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, wrapState(StateCommitting, err)
	}

	return e.sync(ctx, localHash, remoteHash)
}

// Sync runs the Comparing→Reconciling→Resolving→Committing pipeline on
// demand, with no preceding local mutation (spec.md §4.7).
func (e *Engine) Sync(ctx context.Context) (*SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sync(ctx, "", "")
}

// sync implements spec.md §4.7 steps 1-4. localHash/remoteHash are reused
// if already known (e.g. from a preceding writeThrough); empty strings mean
// "compute/fetch fresh".
func (e *Engine) sync(ctx context.Context, localHash, remoteHash string) (*SyncResult, error) {
	if localHash == "" {
		top, err := e.store.ToCanonical()
		if err != nil {
			return nil, wrapState(StateComparing, err)
		}

		data, err := codec.Serialize(top)
		if err != nil {
			return nil, wrapState(StateComparing, err)
		}

		localHash = recordhash.Sum(data)
	}

	if remoteHash == "" {
		h, err := e.remote.Hash(ctx)
		if err != nil {
			return nil, wrapState(StateComparing, err)
		}

		remoteHash = h
	}

	if localHash == remoteHash {
		now := recordstore.Now()

		if err := e.cache.WriteSync(ctx, now); err != nil {
			return nil, wrapState(StateCommitting, err)
		}

		e.lastSync = now

		return &SyncResult{Succeeds: true, Hash: remoteHash, Time: now}, nil
	}

	clientDelta := delta.Compile(e.store, e.lastSync)

	respHash, respData, err := e.remote.Reconcile(ctx, e.lastSync, clientDelta)
	if err != nil {
		return nil, wrapState(StateReconciling, err)
	}

	return e.applyReconciliation(ctx, respHash, respData)
}

// Resolve applies an external resolution of outstanding conflicts
// (spec.md §4.7 step 3) and re-enters Comparing with fresh hashes.
func (e *Engine) Resolve(ctx context.Context, chosen recordstore.TypeIndex) (*SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	respHash, respData, err := e.remote.Resolve(ctx, chosen)
	if err != nil {
		return nil, wrapState(StateResolving, err)
	}

	return e.applyReconciliation(ctx, respHash, respData)
}

// applyReconciliation applies a reconcile/resolve response to the local
// store (new→add, modified→replace, deleted→remove with tombstone,
// conflict→collected without mutation), then commits if the hashes agree
// (spec.md §4.7 steps 2 and 4).
func (e *Engine) applyReconciliation(ctx context.Context, respHash string, respData recordstore.TypeIndex) (*SyncResult, error) {
	conflicts := recordstore.TypeIndex{}

	for typeName, ranks := range respData {
		for _, entry := range ranks[recordstore.RankNew] {
			if err := e.store.Add(entry.Record); err != nil {
				return nil, wrapState(StateReconciling, err)
			}
		}

		for id, entry := range ranks[recordstore.RankModified] {
			if err := e.store.Replace(typeName, id, entry.Record.Payload, entry.Record.Modified); err != nil {
				return nil, wrapState(StateReconciling, err)
			}
		}

		for id, entry := range ranks[recordstore.RankDeleted] {
			if err := e.store.Remove(typeName, id, true, entry.Tombstone.Deleted); err != nil {
				return nil, wrapState(StateReconciling, err)
			}
		}

		for id, entry := range ranks[recordstore.RankConflict] {
			conflicts.Put(typeName, recordstore.RankConflict, id, entry)
		}
	}

	conflicts.Prune()
	e.lastConflicts = conflicts

	if !conflicts.IsEmpty() {
		e.logger.Warn("sync produced unresolved conflicts", "count", countEntries(conflicts))

		return &SyncResult{Succeeds: false, Hash: respHash}, nil
	}

	top, err := e.store.ToCanonical()
	if err != nil {
		return nil, wrapState(StateCommitting, err)
	}

	data, err := codec.Serialize(top)
	if err != nil {
		return nil, wrapState(StateCommitting, err)
	}

	localHash := recordhash.Sum(data)

	if localHash != respHash {
		return nil, wrapState(StateCommitting, &SyncFailedError{LocalHash: localHash, RemoteHash: respHash})
	}

	if _, err := e.cache.WriteData(ctx, data); err != nil {
		return nil, wrapState(StateCommitting, err)
	}

	now := recordstore.Now()

	if err := e.cache.WriteSync(ctx, now); err != nil {
		return nil, wrapState(StateCommitting, err)
	}

	e.lastSync = now

	return &SyncResult{Succeeds: true, Hash: respHash, Time: now}, nil
}

// LastSync returns the engine's current last-sync watermark.
func (e *Engine) LastSync() recordstore.Timestamp {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastSync
}

// Conflicts returns the conflict partitions left by the most recent
// reconciliation, for the application to present to a human or policy
// collaborator before calling Resolve (spec.md §4.7 step 3).
func (e *Engine) Conflicts() recordstore.TypeIndex {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastConflicts
}

func countEntries(ti recordstore.TypeIndex) int {
	var n int

	for _, ranks := range ti {
		for _, ids := range ranks {
			n += len(ids)
		}
	}

	return n
}
