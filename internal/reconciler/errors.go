package reconciler

import (
	"errors"
	"fmt"
)

// ErrReconcile covers an invalid reconciliation request. The reconciler
// returns it for a client delta entry under an unknown rank (spec.md §7's
// ReconcileError).
var ErrReconcile = errors.New("reconciler: invalid reconciliation request")

// Error wraps ErrReconcile with the offending type/id/rank context.
type Error struct {
	Type string
	Id   int64
	Rank string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("reconciler: %s (type=%q id=%d rank=%q)", e.Msg, e.Type, e.Id, e.Rank)
}

func (e *Error) Unwrap() error {
	return ErrReconcile
}
