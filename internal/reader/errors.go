package reader

import "errors"

// ErrUpstreamInconsistent indicates the ChainSource returned a block whose
// number or hash violates what the Reader asked for or expected.
var ErrUpstreamInconsistent = errors.New("reader: upstream returned inconsistent block")

// ErrHistoryExhausted indicates a fork walk-back ran out of cached history
// before finding a matching ancestor. A ChainSource implementing
// HistoryExhaustedHook may return its own error instead; the walk-back fails
// either way.
var ErrHistoryExhausted = errors.New("reader: fork walk-back exhausted cached history")

// ErrSeekBeforeStart indicates SeekTo was called with a target before
// startAtBlock.
var ErrSeekBeforeStart = errors.New("reader: seek target precedes start_at_block")

// ErrReaderInvariant indicates an internal invariant failed: currentBlockData
// was nil at a post-condition checkpoint.
var ErrReaderInvariant = errors.New("reader: invariant violation, no current block at checkpoint")
