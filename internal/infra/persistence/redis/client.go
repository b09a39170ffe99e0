// Package redis implements handler.PersistenceBinder[map[string]any, context.Context]
// over github.com/redis/go-redis/v9, using WATCH/MULTI/EXEC as the
// transactional scope for HandleWithState and a capped list as the rollback
// journal consumed by RollbackTo.
package redis

import (
	"context"

	"github.com/chainkeeper/chainkeeper/internal/handler"

	redis "github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key this binder touches.
const keyPrefix = "chainkeeper"

// Compile-time assertion that Binder implements the generic PersistenceBinder
// seam the Handler consumes.
var _ handler.PersistenceBinder[map[string]any, context.Context] = (*Binder)(nil)

func stateKey() string   { return keyPrefix + ":state" }
func cursorKey() string  { return keyPrefix + ":index_state" }
func journalKey() string { return keyPrefix + ":rollback_journal" }

// pipelineCtxKey is the context key under which the active transaction
// pipeline is stashed for the duration of a HandleWithState call, so
// UpdateIndexState (invoked from inside the caller's closure) queues onto
// the same MULTI/EXEC batch instead of issuing a standalone round-trip.
type pipelineCtxKey struct{}

// Binder implements handler.PersistenceBinder[map[string]any, context.Context].
type Binder struct {
	conn       *redis.Client
	journalCap int64
}

type config struct {
	journalCap int64
}

// Option configures a Binder.
type Option func(*config)

// defaultJournalCap bounds how many past-block snapshots RollbackTo can walk
// back through before giving up.
const defaultJournalCap = 256

// WithJournalCap overrides the rollback journal's retained entry count.
func WithJournalCap(n int64) Option {
	return func(c *config) {
		c.journalCap = n
	}
}

// New constructs a Binder over an already-connected Redis client.
func New(conn *redis.Client, opts ...Option) *Binder {
	cfg := config{journalCap: defaultJournalCap}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Binder{conn: conn, journalCap: cfg.journalCap}
}

// NewClient dials Redis and pings it to fail fast on a bad connection
// rather than on the first real command.
func NewClient(ctx context.Context, addr, username, password string, db int) (*redis.Client, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return conn, nil
}
