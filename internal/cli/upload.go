package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/upload"
)

func uploadCmd() *cli.Command {
	return &cli.Command{
		Name:                  "upload",
		EnableShellCompletion: true,
		Usage:                 "Convey built snapshot artifacts to object storage",
		Description: `Round-robins the snapshot, snapshot-diff and snapshot-latest queues,
uploading each artifact's blob, sha256 sidecar and metadata sidecar to
the configured R2-compatible bucket, deduplicated by HEAD check.

# Examples

  forestpipe upload --chain calibnet`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "chain",
				Usage:   "Chain network name",
				Sources: cli.EnvVars("CHAIN"),
			},
			&cli.StringFlag{
				Name:    "endpoint-url",
				Usage:   "R2-compatible object-store endpoint",
				Sources: cli.EnvVars("R2_ENDPOINT_URL"),
			},
			&cli.StringFlag{
				Name:    "archive-bucket",
				Usage:   "Bucket for lite/diff artifacts",
				Sources: cli.EnvVars("R2_ARCHIVE_BUCKET_NAME"),
			},
			&cli.StringFlag{
				Name:    "latest-bucket",
				Usage:   "Bucket for latest-v1/latest-v2 artifacts",
				Sources: cli.EnvVars("R2_LATEST_BUCKET_NAME"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyEnvFlag(cmd, "chain", "CHAIN")
			applyEnvFlag(cmd, "endpoint-url", "R2_ENDPOINT_URL")
			applyEnvFlag(cmd, "archive-bucket", "R2_ARCHIVE_BUCKET_NAME")
			applyEnvFlag(cmd, "latest-bucket", "R2_LATEST_BUCKET_NAME")

			cfg, err := config.LoadUploadConfig()
			if err != nil {
				return wrapFatal("upload", err)
			}

			srv, reg := bootServer(ctx, "upload", cfg.MetricsPort)

			return wrapFatal("upload", upload.Run(ctx, cfg, reg, srv))
		},
	}
}
