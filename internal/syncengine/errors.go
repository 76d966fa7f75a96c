package syncengine

import (
	"errors"
	"fmt"
)

// ErrTransport covers network failure, a non-2xx response, or a timeout
// talking to the remote store (spec.md §7's TransportError).
var ErrTransport = errors.New("syncengine: transport failure")

// TransportError wraps ErrTransport with the request context.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("syncengine: %s: HTTP %d", e.Op, e.StatusCode)
	}

	return fmt.Sprintf("syncengine: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return errors.Join(ErrTransport, e.Err)
}

// ErrReconcile covers a malformed or unrecognized reconciliation response
// received from the remote store (spec.md §7's ReconcileError).
var ErrReconcile = errors.New("syncengine: invalid reconciliation response")

// ReconcileError wraps ErrReconcile.
type ReconcileError struct {
	Msg string
	Err error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("syncengine: %s", e.Msg)
}

func (e *ReconcileError) Unwrap() error {
	return errors.Join(ErrReconcile, e.Err)
}

// ErrSyncFailed covers a concluding hash mismatch after reconciliation
// (spec.md §7's SyncFailedError).
var ErrSyncFailed = errors.New("syncengine: sync failed")

// SyncFailedError carries both hashes for diagnosis.
type SyncFailedError struct {
	LocalHash  string
	RemoteHash string
}

func (e *SyncFailedError) Error() string {
	return fmt.Sprintf("syncengine: local hash %s does not match remote hash %s after reconciliation", e.LocalHash, e.RemoteHash)
}

func (e *SyncFailedError) Unwrap() error {
	return ErrSyncFailed
}

// SyncError is the engine's propagation wrapper (spec.md §7's propagation
// policy): every failure inside a public operation is reported with the
// pipeline state it occurred in.
type SyncError struct {
	State State
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("syncengine: sync failed in state %s: %v", e.State, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

func wrapState(state State, err error) error {
	if err == nil {
		return nil
	}

	return &SyncError{State: state, Err: err}
}
