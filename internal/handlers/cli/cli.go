// Package cli wires the ingestion driver into a urfave/cli/v3 application,
// with run and replay subcommands and signal-driven graceful shutdown.
package cli

import (
	"context"
	"os"

	"github.com/chainkeeper/chainkeeper/internal/chain"
	"github.com/chainkeeper/chainkeeper/internal/ingest"

	"github.com/urfave/cli/v3"
)

// Driver is the subset of ingest.Driver the CLI commands depend on.
type Driver interface {
	Run(ctx context.Context) error
	Replay(ctx context.Context, through chain.BlockNumber) error
	LastIndexState() chain.IndexState
	Close()
}

var _ Driver = (*ingest.Driver[map[string]any, context.Context])(nil)

// Run initializes and executes the chainkeeper CLI application.
//
//   - `run`: starts the live ingestion loop.
//   - `replay`: re-applies blocks up to a target block number without effects.
func Run(ctx context.Context, d Driver) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "chainkeeper",
		Description:           "Command-line interface for running the chainkeeper ingestion pipeline.",
		Usage:                 "chainkeeper [command] [flags]",
		Commands: []*cli.Command{
			runCommand(d),
			replayCommand(d),
		},
	}

	return app.Run(ctx, os.Args)
}
