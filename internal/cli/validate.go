package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/validate"
)

func validateCmd() *cli.Command {
	return &cli.Command{
		Name:                  "validate",
		EnableShellCompletion: true,
		Usage:                 "Validate uploaded snapshot artifacts",
		Description: `Runs two independent validations on each uploaded snapshot artifact: the
primary chain-tool validator, and a secondary reference-daemon
cross-check (for lite/latest variants). Both must pass before the
artifact's validation record is written back to object storage.

# Examples

  forestpipe validate --chain calibnet --primary-subcommand validate`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "chain",
				Usage:   "Chain network name",
				Sources: cli.EnvVars("CHAIN"),
			},
			&cli.StringFlag{
				Name:    "primary-subcommand",
				Usage:   "Chain-tool subcommand used for primary validation",
				Sources: cli.EnvVars("VALIDATE_PRIMARY_SUBCOMMAND"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyEnvFlag(cmd, "chain", "CHAIN")
			applyEnvFlag(cmd, "primary-subcommand", "VALIDATE_PRIMARY_SUBCOMMAND")

			cfg, err := config.LoadValidateConfig()
			if err != nil {
				return wrapFatal("validate", err)
			}

			srv, reg := bootServer(ctx, "validate", cfg.MetricsPort)

			return wrapFatal("validate", validate.Run(ctx, cfg, reg, srv))
		},
	}
}
