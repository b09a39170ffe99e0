package reader

import "github.com/chainkeeper/chainkeeper/internal/pkg/resilience/retry"

const (
	defaultMaxHistoryLength    = 100
	defaultPrefetchConcurrency = 4
	defaultStartAtBlock        = 1
)

// config holds internal settings for the Reader, set via functional options.
type config struct {
	startAtBlock         int64
	onlyIrreversible     bool
	maxHistoryLength     int
	prefetchConcurrency  int
	retry                retry.Retry
}

// Option configures a Reader at construction time.
type Option func(*config)

// WithStartAtBlock sets the block number the Reader should start tailing
// from. A negative value is interpreted relative to the head block number
// the first time next_block resolves a tail position (head + startAtBlock).
// Default: 1.
func WithStartAtBlock(n int64) Option {
	return func(c *config) {
		c.startAtBlock = n
	}
}

// WithOnlyIrreversible marks the Reader as only ever tailing irreversible
// blocks. This is purely advisory to the ChainSource (which must honor it in
// GetHeadBlockNumber); it also documents that leaving HistoryExhaustedHook
// unimplemented is safe, since irreversible blocks cannot fork.
func WithOnlyIrreversible(b bool) Option {
	return func(c *config) {
		c.onlyIrreversible = b
	}
}

// WithMaxHistoryLength bounds the number of already-applied blocks the
// Reader keeps in memory for fork walk-back. Default: 100.
func WithMaxHistoryLength(n int) Option {
	return func(c *config) {
		c.maxHistoryLength = n
	}
}

// WithPrefetchConcurrency bounds how many blocks the Reader fetches
// concurrently when catching up to head. Default: 4.
func WithPrefetchConcurrency(n int) Option {
	return func(c *config) {
		c.prefetchConcurrency = n
	}
}

// WithRetry wraps every ChainSource call in the given retry policy. Without
// it, ChainSource errors propagate on the first failure.
func WithRetry(r retry.Retry) Option {
	return func(c *config) {
		c.retry = r
	}
}
