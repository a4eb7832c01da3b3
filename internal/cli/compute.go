package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/compute"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
)

func computeCmd() *cli.Command {
	return &cli.Command{
		Name:                  "compute",
		EnableShellCompletion: true,
		Usage:                 "Drive chain computation forward in batches",
		Description: `Computes chain state forward from the last committed cursor to the
current head, in batches of COMPUTE_BATCH_SIZE epochs, publishing each
completed batch's cursor to the "compute" exchange.

# Examples

  forestpipe compute --chain calibnet --batch-size 200`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "chain",
				Usage:   "Chain network name",
				Sources: cli.EnvVars("CHAIN"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Number of epochs computed per batch",
				Sources: cli.EnvVars("COMPUTE_BATCH_SIZE"),
			},
			&cli.IntFlag{
				Name:    "default-start-epoch",
				Usage:   "Starting epoch used when no cursor has been published yet",
				Sources: cli.EnvVars("DEFAULT_START_EPOCH"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyEnvFlag(cmd, "chain", "CHAIN")
			applyEnvFlag(cmd, "batch-size", "COMPUTE_BATCH_SIZE")
			applyEnvFlag(cmd, "default-start-epoch", "DEFAULT_START_EPOCH")

			cfg, err := config.LoadComputeConfig()
			if err != nil {
				return wrapFatal("compute", err)
			}

			srv, reg := bootServer(ctx, "compute", cfg.MetricsPort)

			if err := wrapFatal("compute", compute.Run(ctx, cfg, reg, srv)); err != nil {
				return err
			}
			return nil
		},
	}
}
