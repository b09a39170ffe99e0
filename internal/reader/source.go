package reader

import (
	"context"

	"github.com/chainkeeper/chainkeeper/internal/chain"
)

// ChainSource is the pluggable seam the Reader consumes to pull blocks from
// an upstream chain. Implementations are responsible for talking to the
// actual chain client; the Reader treats every returned error as a transport
// fault and propagates it verbatim to its own caller.
type ChainSource interface {
	// GetHeadBlockNumber returns the current head block number. When the
	// Reader was constructed with OnlyIrreversible, implementations must
	// return the latest irreversible block number instead of the chain tip.
	GetHeadBlockNumber(ctx context.Context) (chain.BlockNumber, error)

	// GetBlock fetches the block at the given number.
	GetBlock(ctx context.Context, n chain.BlockNumber) (chain.Block, error)
}

// HistoryExhaustedHook is an optional capability a ChainSource may implement
// to choose the error returned when a fork walk-back runs out of cached
// history (see resolveFork). A non-nil error from the hook is returned as
// is; a nil error still ends the walk-back with ErrHistoryExhausted, since
// no ancestor is left to resume from. Implementations that only ever tail
// irreversible blocks are safe to leave this unimplemented, since
// irreversible blocks cannot fork.
type HistoryExhaustedHook interface {
	HistoryExhausted(ctx context.Context) error
}

// historyExhausted invokes the source's HistoryExhaustedHook if it provides
// one, otherwise returns the default fatal error.
func historyExhausted(ctx context.Context, source ChainSource) error {
	if hook, ok := source.(HistoryExhaustedHook); ok {
		return hook.HistoryExhausted(ctx)
	}

	return ErrHistoryExhausted
}
