// Package ingest drives a single (Reader, Handler) pair: the live loop of
// NextBlock -> HandleBlock -> conditional SeekTo, and a bounded replay mode
// used for idempotent re-application up to a target block.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chainkeeper/chainkeeper/internal/chain"
	"github.com/chainkeeper/chainkeeper/internal/handler"
	"github.com/chainkeeper/chainkeeper/internal/pkg/logger"
	"github.com/chainkeeper/chainkeeper/internal/reader"
)

// averageBlockTime is the poll backoff applied when the Reader reports no
// new block: caught up to head, there is nothing to gain from spinning.
const averageBlockTime = 12 * time.Second

type closeFunc func()

// Driver owns exactly one Reader/Handler pair, per the single-logical-task
// assumption: nothing else may call SeekTo/NextBlock on the underlying
// Reader or HandleBlock on the underlying Handler concurrently with Run or
// Replay.
type Driver[S any, C any] struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	reader  *reader.Reader
	handler *handler.Handler[S, C]

	onLoopError  loopErrorHandler
	metrics      Metrics
	network      string
	pollInterval time.Duration
}

type loopErrorHandler func(ctx context.Context, err error)

// Metrics is the subset of telemetry.IngestMetrics the Driver reports
// against, kept as a narrow interface so callers can stub it in tests.
type Metrics interface {
	RecordBlockApplied(ctx context.Context, network string)
	RecordForkDetected(ctx context.Context, network string)
	RecordRollback(ctx context.Context, network string)
	RecordVersionSwitch(ctx context.Context, network string)
}

type noopMetrics struct{}

func (noopMetrics) RecordBlockApplied(context.Context, string)  {}
func (noopMetrics) RecordForkDetected(context.Context, string)  {}
func (noopMetrics) RecordRollback(context.Context, string)      {}
func (noopMetrics) RecordVersionSwitch(context.Context, string) {}

type config struct {
	onLoopError  loopErrorHandler
	metrics      Metrics
	network      string
	pollInterval time.Duration
}

// Option configures a Driver.
type Option func(*config)

// WithLoopErrorHandler overrides the default logging behavior invoked when
// an iteration of Run or Replay fails, just before that error is returned
// and the loop ends.
func WithLoopErrorHandler(f loopErrorHandler) Option {
	return func(c *config) {
		c.onLoopError = f
	}
}

// WithMetrics attaches an OTEL-backed Metrics reporter, labeling every
// recorded measurement with network.
func WithMetrics(m Metrics, network string) Option {
	return func(c *config) {
		c.metrics = m
		c.network = network
	}
}

func defaultOnLoopError(ctx context.Context, err error) {
	logger.Error(ctx, "ingest loop error", "error", err)
}

// WithPollInterval overrides how long Run waits before calling NextBlock
// again after catching up to head. Default: averageBlockTime.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// New constructs a Driver over the given Reader and Handler.
func New[S any, C any](r *reader.Reader, h *handler.Handler[S, C], opts ...Option) *Driver[S, C] {
	cfg := config{onLoopError: defaultOnLoopError, metrics: noopMetrics{}, pollInterval: averageBlockTime}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Driver[S, C]{
		reader:       r,
		handler:      h,
		onLoopError:  cfg.onLoopError,
		metrics:      cfg.metrics,
		network:      cfg.network,
		pollInterval: cfg.pollInterval,
	}
}

// LastIndexState returns the Handler's in-memory cursor as an IndexState.
func (d *Driver[S, C]) LastIndexState() chain.IndexState {
	num, hash := d.handler.LastProcessed()
	return chain.IndexState{
		BlockNumber:        num,
		BlockHash:          hash,
		HandlerVersionName: d.handler.HandlerVersionName(),
	}
}

// start marks the Driver running, returning ErrServiceAlreadyStarted if a
// Run or Replay is already in progress, and returns a context bound to both
// the caller's ctx and the Driver's own Close.
func (d *Driver[S, C]) start(ctx context.Context) (context.Context, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isStarted {
		return nil, ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	d.closeFunc = func() { cancel() }
	d.isStarted = true

	return ctx, nil
}

func (d *Driver[S, C]) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closeFunc != nil {
		d.closeFunc()
	}
	d.isStarted = false
	d.closeFunc = nil
}

// Close stops a running Run or Replay loop, causing it to return ctx.Err().
func (d *Driver[S, C]) Close() {
	d.stop()
}

// Run drives the live loop until ctx is canceled or a fatal error occurs.
func (d *Driver[S, C]) Run(ctx context.Context) error {
	ctx, err := d.start(ctx)
	if err != nil {
		return err
	}
	defer d.stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		caughtUp, err := d.step(ctx, false)
		if err != nil {
			d.onLoopError(ctx, err)
			return err
		}

		if caughtUp {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.pollInterval):
			}
		}
	}
}

// Replay drives the loop with effects suppressed until the Handler's last
// processed block number reaches through, then returns nil.
func (d *Driver[S, C]) Replay(ctx context.Context, through chain.BlockNumber) error {
	ctx, err := d.start(ctx)
	if err != nil {
		return err
	}
	defer d.stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		num, _ := d.handler.LastProcessed()
		if num >= through {
			return nil
		}

		if _, err := d.step(ctx, true); err != nil {
			d.onLoopError(ctx, err)
			return err
		}
	}
}

// step runs exactly one NextBlock -> HandleBlock -> conditional SeekTo
// iteration. The returned bool reports whether the Reader was already
// caught up to head and made no progress this call, so the caller can back
// off instead of spinning.
func (d *Driver[S, C]) step(ctx context.Context, isReplay bool) (caughtUp bool, err error) {
	block, isRollback, isNew, err := d.reader.NextBlock(ctx)
	if err != nil {
		return false, fmt.Errorf("ingest: reading next block: %w", err)
	}

	if !isNew {
		return true, nil
	}

	if isRollback {
		d.metrics.RecordForkDetected(ctx, d.network)
		d.metrics.RecordRollback(ctx, d.network)
	}

	versionBefore := d.handler.HandlerVersionName()

	needsSeek, seekTarget, err := d.handler.HandleBlock(ctx, block, isRollback, d.reader.IsFirstBlock(), isReplay)
	if err != nil {
		return false, fmt.Errorf("ingest: handling block %d: %w", block.BlockNumber, err)
	}

	if d.handler.HandlerVersionName() != versionBefore {
		d.metrics.RecordVersionSwitch(ctx, d.network)
	}

	if needsSeek {
		if err := d.reader.SeekTo(ctx, seekTarget); err != nil {
			return false, fmt.Errorf("ingest: seeking to %d: %w", seekTarget, err)
		}
		return false, nil
	}

	d.metrics.RecordBlockApplied(ctx, d.network)

	return false, nil
}
