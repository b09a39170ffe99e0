package redis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/chainkeeper/chainkeeper/internal/pkg/logger"

	redis "github.com/redis/go-redis/v9"
)

// maxTxRetries bounds how many times HandleWithState retries after a
// WATCH/EXEC optimistic-lock conflict before giving up.
const maxTxRetries = 10

// HandleWithState implements handler.PersistenceBinder. It loads the
// current state under a WATCH on the state key, runs f against it inside a
// MULTI/EXEC pipeline, and retries on optimistic-lock conflicts.
func (b *Binder) HandleWithState(ctx context.Context, f func(ctx context.Context, state map[string]any, hctx context.Context) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := b.conn.Watch(ctx, func(tx *redis.Tx) error {
			state, err := b.loadState(ctx, tx)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pctx := context.WithValue(ctx, pipelineCtxKey{}, pipe)

				if err := f(pctx, state, pctx); err != nil {
					return err
				}

				data, err := json.Marshal(state)
				if err != nil {
					return err
				}

				return pipe.Set(ctx, stateKey(), data, 0).Err()
			})
			return err
		}, stateKey())

		if errors.Is(err, redis.TxFailedErr) {
			logger.Warn(ctx, "optimistic lock conflict applying block, retrying", "attempt", attempt)
			continue
		}

		return err
	}

	return redis.TxFailedErr
}

func (b *Binder) loadState(ctx context.Context, tx *redis.Tx) (map[string]any, error) {
	raw, err := tx.Get(ctx, stateKey()).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	state := make(map[string]any)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, err
		}
	}

	return state, nil
}
