package reader

import (
	"context"

	"github.com/chainkeeper/chainkeeper/internal/chain"
)

// SeekTo repositions the Reader so that the next NextBlock call fetches and
// returns block target. It anchors on target-1 (the same "one less than the
// next block to emit" convention NextBlock's tail resolution uses), first
// checking whether that anchor is already in blockHistory before falling
// back to a fresh fetch.
func (r *Reader) SeekTo(ctx context.Context, target chain.BlockNumber) error {
	if int64(target) < r.cfg.startAtBlock {
		return ErrSeekBeforeStart
	}

	r.currentBlockData = nil
	r.headBlockNumber = 0
	r.prefetchBuffer = nil

	anchor := int64(target) - 1

	for i := len(r.blockHistory) - 1; i >= 0; i-- {
		if int64(r.blockHistory[i].BlockNumber) == anchor {
			found := r.blockHistory[i]
			r.blockHistory = r.blockHistory[:i]
			r.currentBlockData = &found
			r.currentBlockNumber = anchor
			return nil
		}
	}

	r.currentBlockNumber = anchor
	if anchor <= 0 {
		return nil
	}

	block, err := r.fetchBlock(ctx, chain.BlockNumber(anchor))
	if err != nil {
		return err
	}
	r.currentBlockData = &block

	return nil
}
