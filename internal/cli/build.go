package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/build"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
)

func buildCmd() *cli.Command {
	return &cli.Command{
		Name:                  "build",
		EnableShellCompletion: true,
		Usage:                 "Export lite, diff and latest snapshot artifacts",
		Description: `Runs either historic mode (backfilling lite/diff snapshots across the
chain's history) or latest mode (building a fresh latest-v2 snapshot on
a fixed cadence), selected by BUILD_LATEST_SNAPSHOTS.

# Examples

  forestpipe build --chain calibnet
  forestpipe build --latest-snapshots --build-delay 600`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "chain",
				Usage:   "Chain network name",
				Sources: cli.EnvVars("CHAIN"),
			},
			&cli.StringFlag{
				Name:    "snapshot-path",
				Usage:   "Staging directory for freshly built snapshot artifacts",
				Sources: cli.EnvVars("SNAPSHOT_PATH"),
			},
			&cli.StringFlag{
				Name:    "snapshot-archive-path",
				Usage:   "Staging directory for historic (lite/diff) snapshot artifacts",
				Sources: cli.EnvVars("SNAPSHOT_ARCHIVE_PATH"),
			},
			&cli.BoolFlag{
				Name:    "latest-snapshots",
				Usage:   "Run in latest mode instead of historic mode",
				Sources: cli.EnvVars("BUILD_LATEST_SNAPSHOTS"),
			},
			&cli.IntFlag{
				Name:    "build-delay",
				Usage:   "Seconds slept between latest-mode iterations",
				Sources: cli.EnvVars("BUILD_DELAY"),
			},
			&cli.BoolFlag{
				Name:    "wait-for-computation",
				Usage:   "Poll the compute cursor before building a historic snapshot",
				Sources: cli.EnvVars("WAIT_FOR_COMPUTATION"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyEnvFlag(cmd, "chain", "CHAIN")
			applyEnvFlag(cmd, "snapshot-path", "SNAPSHOT_PATH")
			applyEnvFlag(cmd, "snapshot-archive-path", "SNAPSHOT_ARCHIVE_PATH")
			applyEnvFlag(cmd, "latest-snapshots", "BUILD_LATEST_SNAPSHOTS")
			applyEnvFlag(cmd, "build-delay", "BUILD_DELAY")
			applyEnvFlag(cmd, "wait-for-computation", "WAIT_FOR_COMPUTATION")

			cfg, err := config.LoadBuildConfig()
			if err != nil {
				return wrapFatal("build", err)
			}

			srv, reg := bootServer(ctx, "build", cfg.MetricsPort)

			return wrapFatal("build", build.Run(ctx, cfg, reg, srv))
		},
	}
}
