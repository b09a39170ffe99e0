package handler

import (
	"context"

	"github.com/chainkeeper/chainkeeper/internal/chain"
)

// PersistenceBinder is the pluggable seam the Handler consumes to persist
// state and the index cursor. S is the opaque application state type and C
// is an opaque context value threaded through to updaters and effects (for
// example, a request-scoped logger or tracer span); both are supplied
// exclusively to the closure passed to HandleWithState for the duration of
// that single call.
type PersistenceBinder[S any, C any] interface {
	// LoadIndexState returns the last persisted cursor.
	LoadIndexState(ctx context.Context) (chain.IndexState, error)

	// UpdateIndexState persists the new cursor for block, under
	// handlerVersionName, as part of the current HandleWithState scope.
	// isReplay is threaded through so implementations can skip side-channel
	// bookkeeping (e.g. metrics) during replay.
	UpdateIndexState(ctx context.Context, state S, block chain.Block, isReplay bool, handlerVersionName string, hctx C) error

	// RollbackTo reverses all application effects down to and including
	// blockNumber, so that after it returns the store reflects the state
	// after blockNumber was applied.
	RollbackTo(ctx context.Context, blockNumber chain.BlockNumber) error

	// HandleWithState scopes a transactional acquisition of state and hctx:
	// f is invoked exactly once before HandleWithState returns; on f's
	// success the binder commits, on error it aborts.
	HandleWithState(ctx context.Context, f func(ctx context.Context, state S, hctx C) error) error
}
