package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/chainkeeper/chainkeeper/internal/chain"

	redis "github.com/redis/go-redis/v9"
)

// LoadIndexState implements handler.PersistenceBinder. A missing cursor key
// (first-ever run) yields the zero IndexState, per chain.NoBlock's
// sentinel meaning.
func (b *Binder) LoadIndexState(ctx context.Context) (chain.IndexState, error) {
	raw, err := b.conn.Get(ctx, cursorKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return chain.IndexState{}, nil
	}
	if err != nil {
		return chain.IndexState{}, err
	}

	var state chain.IndexState
	if err := json.Unmarshal(raw, &state); err != nil {
		return chain.IndexState{}, err
	}

	return state, nil
}

// journalEntry is one retained rollback-journal snapshot: the state and
// cursor as they stood immediately after applying BlockNumber.
type journalEntry struct {
	IndexState chain.IndexState `json:"index_state"`
	State      map[string]any   `json:"state"`
}

// UpdateIndexState implements handler.PersistenceBinder. It must be called
// from inside a HandleWithState closure: it queues onto the active MULTI
// pipeline rather than issuing its own round-trip, so the cursor update and
// the state write it accompanies commit atomically.
func (b *Binder) UpdateIndexState(ctx context.Context, state map[string]any, block chain.Block, isReplay bool, handlerVersionName string, hctx context.Context) error {
	pipe, ok := ctx.Value(pipelineCtxKey{}).(redis.Pipeliner)
	if !ok {
		return ErrNoActivePipeline
	}

	indexState := chain.IndexState{
		BlockNumber:        block.BlockNumber,
		BlockHash:          block.BlockHash,
		HandlerVersionName: handlerVersionName,
	}

	cursorData, err := json.Marshal(indexState)
	if err != nil {
		return err
	}
	pipe.Set(ctx, cursorKey(), cursorData, 0)

	entryData, err := json.Marshal(journalEntry{IndexState: indexState, State: state})
	if err != nil {
		return err
	}
	pipe.LPush(ctx, journalKey(), entryData)
	pipe.LTrim(ctx, journalKey(), 0, b.journalCap-1)

	return nil
}
