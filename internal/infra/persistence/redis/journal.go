package redis

import (
	"context"
	"encoding/json"

	"github.com/chainkeeper/chainkeeper/internal/chain"

	redis "github.com/redis/go-redis/v9"
)

// RollbackTo implements handler.PersistenceBinder. It walks the journal
// newest-to-oldest for the first entry at or before blockNumber, restores
// state and the cursor to that snapshot, and trims the journal so later
// entries (the now-discarded fork branch) are not replayed by a future
// rollback.
func (b *Binder) RollbackTo(ctx context.Context, blockNumber chain.BlockNumber) error {
	raw, err := b.conn.LRange(ctx, journalKey(), 0, -1).Result()
	if err != nil {
		return err
	}

	for i, r := range raw {
		var entry journalEntry
		if err := json.Unmarshal([]byte(r), &entry); err != nil {
			return err
		}

		if entry.IndexState.BlockNumber > blockNumber {
			continue
		}

		stateData, err := json.Marshal(entry.State)
		if err != nil {
			return err
		}
		cursorData, err := json.Marshal(entry.IndexState)
		if err != nil {
			return err
		}

		_, err = b.conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, stateKey(), stateData, 0)
			pipe.Set(ctx, cursorKey(), cursorData, 0)
			pipe.LTrim(ctx, journalKey(), int64(i), -1)
			return nil
		})
		return err
	}

	// No snapshot at or before blockNumber survives in the journal. If the
	// caller asked to roll back to before any block was ever applied (the
	// cold-start/first-replay-block case, blockNumber == chain.NoBlock),
	// that is a pristine empty store, not a failure: reset state and cursor
	// and drop the journal entirely.
	if blockNumber == chain.NoBlock {
		_, err := b.conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, stateKey())
			pipe.Del(ctx, cursorKey())
			pipe.Del(ctx, journalKey())
			return nil
		})
		return err
	}

	return ErrRollbackTargetNotInJournal
}
