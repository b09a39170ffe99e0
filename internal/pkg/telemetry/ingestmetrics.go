package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

func networkAttr(network string) attribute.KeyValue {
	return attribute.String("network", network)
}

// IngestMetrics holds the OTEL counters the ingestion driver reports
// against the globally registered MeterProvider (set up by Init).
type IngestMetrics struct {
	BlocksApplied   metric.Int64Counter
	ForksDetected   metric.Int64Counter
	Rollbacks       metric.Int64Counter
	VersionSwitches metric.Int64Counter
}

// NewIngestMetrics creates the counters used to report ingestion progress
// and fork activity, labeled by network at record time.
func NewIngestMetrics() (IngestMetrics, error) {
	meter := otel.Meter("chainkeeper/ingest")

	blocksApplied, err := meter.Int64Counter("chainkeeper.ingest.blocks_applied",
		metric.WithDescription("Number of blocks fully applied by the handler"))
	if err != nil {
		return IngestMetrics{}, err
	}

	forksDetected, err := meter.Int64Counter("chainkeeper.ingest.forks_detected",
		metric.WithDescription("Number of forks detected by the reader"))
	if err != nil {
		return IngestMetrics{}, err
	}

	rollbacks, err := meter.Int64Counter("chainkeeper.ingest.rollbacks",
		metric.WithDescription("Number of rollbacks performed against the persistence layer"))
	if err != nil {
		return IngestMetrics{}, err
	}

	versionSwitches, err := meter.Int64Counter("chainkeeper.ingest.handler_version_switches",
		metric.WithDescription("Number of handler version switches requested by updaters"))
	if err != nil {
		return IngestMetrics{}, err
	}

	return IngestMetrics{
		BlocksApplied:   blocksApplied,
		ForksDetected:   forksDetected,
		Rollbacks:       rollbacks,
		VersionSwitches: versionSwitches,
	}, nil
}

// RecordBlockApplied increments the blocks-applied counter for network.
func (m IngestMetrics) RecordBlockApplied(ctx context.Context, network string) {
	m.BlocksApplied.Add(ctx, 1, metric.WithAttributes(networkAttr(network)))
}

// RecordForkDetected increments the forks-detected counter for network.
func (m IngestMetrics) RecordForkDetected(ctx context.Context, network string) {
	m.ForksDetected.Add(ctx, 1, metric.WithAttributes(networkAttr(network)))
}

// RecordRollback increments the rollbacks counter for network.
func (m IngestMetrics) RecordRollback(ctx context.Context, network string) {
	m.Rollbacks.Add(ctx, 1, metric.WithAttributes(networkAttr(network)))
}

// RecordVersionSwitch increments the handler-version-switch counter for network.
func (m IngestMetrics) RecordVersionSwitch(ctx context.Context, network string) {
	m.VersionSwitches.Add(ctx, 1, metric.WithAttributes(networkAttr(network)))
}
