// Command chainkeeper runs the block-ingestion pipeline against an
// Ethereum-compatible JSON-RPC node, persisting state and the index cursor
// to Redis.
package main

import (
	"context"
	"fmt"
	"os"

	cliapp "github.com/chainkeeper/chainkeeper/internal/handlers/cli"
	"github.com/chainkeeper/chainkeeper/internal/handler"
	chainsourcejsonrpc "github.com/chainkeeper/chainkeeper/internal/infra/chainsource/jsonrpc"
	persistenceredis "github.com/chainkeeper/chainkeeper/internal/infra/persistence/redis"
	"github.com/chainkeeper/chainkeeper/internal/ingest"
	"github.com/chainkeeper/chainkeeper/internal/pkg/config"
	httptransport "github.com/chainkeeper/chainkeeper/internal/pkg/transport/http"
	"github.com/chainkeeper/chainkeeper/internal/pkg/transport/jsonrpc"
	"github.com/chainkeeper/chainkeeper/internal/pkg/logger"
	"github.com/chainkeeper/chainkeeper/internal/pkg/resilience/retry"
	"github.com/chainkeeper/chainkeeper/internal/pkg/telemetry"
	"github.com/chainkeeper/chainkeeper/internal/reader"
)

// defaultVersions is the reference HandlerVersion set wired by this binary.
// Real deployments supply their own updaters/effects; this passthrough
// version exists so the pipeline runs end to end out of the box.
func defaultVersions() []handler.HandlerVersion[map[string]any, context.Context] {
	return []handler.HandlerVersion[map[string]any, context.Context]{
		{VersionName: "v1"},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTELServiceName)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer shutdownTelemetry(ctx)

	metrics, err := telemetry.NewIngestMetrics()
	if err != nil {
		return fmt.Errorf("initializing ingest metrics: %w", err)
	}

	rpcConn := jsonrpc.NewClient(httptransport.NewClient().StandardClient(), cfg.ChainRPCURL)
	source := chainsourcejsonrpc.New(rpcConn)

	redisConn, err := persistenceredis.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisConn.Close()
	binder := persistenceredis.New(redisConn)

	h, err := handler.New(ctx, binder, defaultVersions())
	if err != nil {
		return fmt.Errorf("constructing handler: %w", err)
	}

	r := reader.New(source,
		reader.WithStartAtBlock(int64(cfg.StartAtBlock)),
		reader.WithOnlyIrreversible(cfg.OnlyIrreversible),
		reader.WithMaxHistoryLength(cfg.MaxHistoryLength),
		reader.WithPrefetchConcurrency(cfg.PrefetchConcurrency),
		reader.WithRetry(retry.New()),
	)

	driver := ingest.New(r, h,
		ingest.WithMetrics(metrics, "default"),
		ingest.WithPollInterval(cfg.PollInterval),
	)

	return cliapp.Run(ctx, driver)
}

func main() {
	ctx := context.Background()

	if err := run(ctx); err != nil {
		logger.Error(ctx, "fatal error", "error", err)
		os.Exit(1)
	}
}
