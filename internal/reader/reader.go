// Package reader implements the forward cursor over a chain source: it
// sequences incoming blocks, detects forks by hash-chaining, and resolves
// forks by walk-back comparison against freshly refetched blocks.
package reader

import (
	"context"
	"sync"

	"github.com/chainkeeper/chainkeeper/internal/chain"
	"github.com/chainkeeper/chainkeeper/internal/pkg/logger"
)

// invalidHash is the sentinel "expected hash" used when no current block has
// been seen yet.
const invalidHash chain.BlockHash = "INVALID"

// Reader is a forward cursor over a chain source. It is not safe for
// concurrent use by multiple goroutines; a single driver task owns it.
type Reader struct {
	source ChainSource
	cfg    config

	headBlockNumber    chain.BlockNumber
	currentBlockNumber int64
	isFirstBlock       bool
	currentBlockData   *chain.Block
	blockHistory       []chain.Block

	prefetchBuffer []chain.Block
}

// New constructs a Reader over the given ChainSource.
func New(source ChainSource, opts ...Option) *Reader {
	cfg := config{
		startAtBlock:        defaultStartAtBlock,
		maxHistoryLength:    defaultMaxHistoryLength,
		prefetchConcurrency: defaultPrefetchConcurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	// currentBlockNumber always tracks the anchor (one less than the next
	// block to fetch/emit). For an absolute start this is startAtBlock - 1;
	// a negative startAtBlock means "relative to head", left as-is so the
	// tail-resolution step in NextBlock resolves it once head is known. A
	// startAtBlock of 0 stays at anchor 0, so reading begins at block 1.
	anchor := cfg.startAtBlock
	if cfg.startAtBlock > 0 {
		anchor = cfg.startAtBlock - 1
	}

	return &Reader{
		source:             source,
		cfg:                cfg,
		currentBlockNumber: anchor,
	}
}

// IsFirstBlock reports whether the most recently returned block is the
// first block this Reader has ever emitted (i.e. its number equals the
// resolved start_at_block).
func (r *Reader) IsFirstBlock() bool {
	return r.isFirstBlock
}

// fetchHead retrieves the current head block number, honoring the
// configured retry policy.
func (r *Reader) fetchHead(ctx context.Context) (chain.BlockNumber, error) {
	var head chain.BlockNumber
	op := func() error {
		var err error
		head, err = r.source.GetHeadBlockNumber(ctx)
		return err
	}

	if r.cfg.retry != nil {
		if err := r.cfg.retry.Execute(ctx, op); err != nil {
			return 0, err
		}
		return head, nil
	}

	if err := op(); err != nil {
		return 0, err
	}
	return head, nil
}

// fetchBlock retrieves a single block, honoring the configured retry policy.
func (r *Reader) fetchBlock(ctx context.Context, n chain.BlockNumber) (chain.Block, error) {
	var block chain.Block
	op := func() error {
		var err error
		block, err = r.source.GetBlock(ctx, n)
		return err
	}

	if r.cfg.retry != nil {
		if err := r.cfg.retry.Execute(ctx, op); err != nil {
			return chain.Block{}, err
		}
		return block, nil
	}

	if err := op(); err != nil {
		return chain.Block{}, err
	}
	return block, nil
}

// fetchRange concurrently fetches blocks [from, to] (inclusive), bounded by
// the configured prefetch concurrency, and reassembles them in strict
// block-number order.
func (r *Reader) fetchRange(ctx context.Context, from, to chain.BlockNumber) ([]chain.Block, error) {
	count := int(to-from) + 1
	blocks := make([]chain.Block, count)
	errs := make([]error, count)

	concurrency := r.cfg.prefetchConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > count {
		concurrency = count
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i := 0; i < count; i++ {
		n := from + chain.BlockNumber(i)
		idx := i

		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			block, err := r.fetchBlock(ctx, n)
			blocks[idx] = block
			errs[idx] = err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		if blocks[i].BlockNumber != from+chain.BlockNumber(i) {
			return nil, ErrUpstreamInconsistent
		}
	}

	return blocks, nil
}

// NextBlock advances the cursor by exactly one step and returns the block
// now considered current, along with whether this call resolved a fork
// (isRollback) and whether the returned block is new to the caller (isNew
// is false only when the Reader was already caught up to head and this
// call made no progress — the caller should back off before calling again).
func (r *Reader) NextBlock(ctx context.Context) (block chain.Block, isRollback bool, isNew bool, err error) {
	// 1. Head refresh.
	if r.currentBlockNumber == int64(r.headBlockNumber) || r.headBlockNumber == 0 {
		head, err := r.fetchHead(ctx)
		if err != nil {
			return chain.Block{}, false, false, err
		}
		r.headBlockNumber = head
		r.prefetchBuffer = nil
	}

	// 2. Tail resolution.
	if r.currentBlockNumber < 0 && len(r.blockHistory) == 0 {
		resolved := int64(r.headBlockNumber) + r.cfg.startAtBlock
		r.cfg.startAtBlock = resolved
		r.currentBlockNumber = resolved - 1
	}

	// 3. Advance by one step. The prefetch buffer is refilled from the
	// chain source and drained one entry per call (not per loop, since
	// Go's scheduler gives us no free concurrency here beyond fetchRange's
	// internal fan-out) — this keeps one NextBlock call == one block
	// handed to the caller, which is what lets the Handler apply updaters
	// and effects per block rather than skipping ahead to head.
	if r.currentBlockNumber < int64(r.headBlockNumber) {
		if len(r.prefetchBuffer) == 0 {
			buf, err := r.fetchRange(ctx, chain.BlockNumber(r.currentBlockNumber+1), r.headBlockNumber)
			if err != nil {
				return chain.Block{}, false, false, err
			}
			r.prefetchBuffer = buf
		}

		u := r.prefetchBuffer[0]
		r.prefetchBuffer = r.prefetchBuffer[1:]

		expected := invalidHash
		if r.currentBlockData != nil {
			expected = r.currentBlockData.BlockHash
		}
		actual := u.PreviousBlockHash

		if expected == actual || len(r.blockHistory) == 0 {
			// Linked case.
			if r.currentBlockData != nil {
				r.blockHistory = append(r.blockHistory, *r.currentBlockData)
				if len(r.blockHistory) > r.cfg.maxHistoryLength {
					r.blockHistory = r.blockHistory[len(r.blockHistory)-r.cfg.maxHistoryLength:]
				}
			}
			r.currentBlockData = &u
			r.currentBlockNumber = int64(u.BlockNumber)
			isNew = true
		} else {
			// Fork case: resolve_fork walks back until a refetched block
			// re-links to the newest remaining history entry, and leaves
			// currentBlockData/currentBlockNumber on that refetched block;
			// the caller receives it now, and resumes forward
			// progress (including re-fetching this same range) on its next
			// call, since the prefetch buffer built against the old head
			// is now stale.
			r.prefetchBuffer = nil
			if err := r.resolveFork(ctx); err != nil {
				return chain.Block{}, false, false, err
			}
			isNew = true
			isRollback = true

			head, err := r.fetchHead(ctx)
			if err != nil {
				return chain.Block{}, false, false, err
			}
			r.headBlockNumber = head
		}
	}

	// 4. First-block flag.
	r.isFirstBlock = r.currentBlockNumber == r.cfg.startAtBlock

	if r.currentBlockData == nil {
		return chain.Block{}, false, false, ErrReaderInvariant
	}

	return *r.currentBlockData, isRollback, isNew, nil
}

// resolveFork walks the in-memory history from newest to oldest, refetching
// each candidate ancestor until the hash chain re-links or history is
// exhausted.
func (r *Reader) resolveFork(ctx context.Context) error {
	if r.currentBlockData == nil {
		return ErrReaderInvariant
	}

	logger.Warn(ctx, "fork detected, walking back history",
		"block.number", r.currentBlockData.BlockNumber,
		"block.hash", r.currentBlockData.BlockHash,
	)

	for len(r.blockHistory) > 0 {
		prev := r.blockHistory[len(r.blockHistory)-1]

		refetched, err := r.fetchBlock(ctx, r.currentBlockData.BlockNumber)
		if err != nil {
			return err
		}
		r.currentBlockData = &refetched

		if refetched.PreviousBlockHash == prev.BlockHash {
			break
		}

		r.currentBlockData = &prev
		r.blockHistory = r.blockHistory[:len(r.blockHistory)-1]
	}

	if len(r.blockHistory) == 0 {
		if err := historyExhausted(ctx, r.source); err != nil {
			return err
		}
		// The hook returned nil. There is still no ancestor left to resume
		// from, so the walk-back fails with ErrHistoryExhausted anyway.
		return ErrHistoryExhausted
	}

	r.currentBlockNumber = int64(r.blockHistory[len(r.blockHistory)-1].BlockNumber) + 1

	logger.Info(ctx, "fork resolved",
		"block.number", r.currentBlockNumber,
	)

	return nil
}
