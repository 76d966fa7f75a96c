package syncengine

import "github.com/formulahunter/recordsync-go/internal/recordstore"

// State is one step of the fixed sync pipeline (spec.md §4.7).
type State int

const (
	StateIdle State = iota
	StateComparing
	StateReconciling
	StateResolving
	StateCommitting
	StateSynced
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComparing:
		return "comparing"
	case StateReconciling:
		return "reconciling"
	case StateResolving:
		return "resolving"
	case StateCommitting:
		return "committing"
	case StateSynced:
		return "synced"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SyncResult is the outcome of a sync operation (spec.md §4.7). Succeeds
// is false when the pass ended without agreement, for example with
// unresolved conflicts or a declined confirmation.
type SyncResult struct {
	Succeeds bool
	Hash     string
	Time     recordstore.Timestamp
}
