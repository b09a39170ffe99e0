package cli

import (
	"context"
	"fmt"

	"github.com/chainkeeper/chainkeeper/internal/chain"

	"github.com/urfave/cli/v3"
)

// replayCommand returns a CLI command that re-applies blocks (effects
// suppressed) up to and including a target block number, to rebuild
// derived state from a known-good checkpoint.
//
// Usage example:
//
//	chainkeeper replay --through 1000000
func replayCommand(d Driver) *cli.Command {
	return &cli.Command{
		Name:        "replay",
		Description: "Re-applies blocks up to a target block number without running effects.",
		Usage:       "Replays updaters from the configured start block through --through.",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:     "through",
				Usage:    "Target block number to replay through (inclusive)",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			through := chain.BlockNumber(c.Uint("through"))

			if err := d.Replay(ctx, through); err != nil {
				return fmt.Errorf("replay: %w", err)
			}

			state := d.LastIndexState()
			fmt.Printf("replay complete, cursor at block %d (%s)\n", state.BlockNumber, state.BlockHash)

			return nil
		},
	}
}
