package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// runCommand returns a CLI command that starts the live ingestion loop.
//
// Usage example:
//
//	chainkeeper run
//
// The process runs indefinitely until it receives an interrupt (SIGINT or
// SIGTERM).
func runCommand(d Driver) *cli.Command {
	return &cli.Command{
		Name:        "run",
		Description: "Starts the live ingestion loop: reads blocks, applies updaters and effects, persists the cursor.",
		Usage:       "Runs the pipeline until Ctrl+C or a termination signal.",
		Action: func(ctx context.Context, c *cli.Command) error {
			quit := make(chan os.Signal, 1)
			defer close(quit)

			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() { errCh <- d.Run(ctx) }()

			select {
			case <-quit:
				d.Close()
				return <-errCh
			case err := <-errCh:
				return err
			}
		},
	}
}
