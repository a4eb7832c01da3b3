package validate

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/defaults"
	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/validatedaemon"
)

// secondaryValidate runs the reference-daemon cross-check of §4.5
// Validation 2 against path: start the container importing the
// snapshot under test, wait for it to sync, cross-check one of its
// blocks against an external node (the primary RPC, or the backup when
// the primary fails or returns nothing), and tear the
// container down on every exit path regardless of outcome.
func secondaryValidate(ctx context.Context, docker *client.Client, cfg config.ValidateConfig, path string) (lotusVersion string, err error) {
	mgr := validatedaemon.NewManager(docker, validatedaemon.Config{
		Image:                cfg.Lotus.DaemonImage,
		ContainerName:        cfg.Lotus.ContainerName,
		DockerNetwork:        cfg.Lotus.DockerNetwork,
		HostSnapshotDir:      cfg.Lotus.HostSnapshotDir,
		ContainerSnapshotDir: cfg.Lotus.ContainerSnapshotDir,
	})
	defer func() { _ = mgr.Teardown(context.Background()) }()

	if err := mgr.Start(ctx, path); err != nil {
		return "", err
	}

	localEndpoint := fmt.Sprintf("http://%s:%d/rpc/v0", cfg.Lotus.Host, cfg.Lotus.RPCPort)

	if err := validatedaemon.Run(ctx, validatedaemon.CrossCheckConfig{
		LocalEndpoint:    localEndpoint,
		PrimaryRPC:       cfg.Lotus.FullRPCNode,
		BackupRPC:        cfg.Lotus.BackupRPCNode,
		TestHeightOffset: 1950,
	}, defaults.ValidateRPCReadyTimeout, defaults.ValidateSyncWaitTimeout); err != nil {
		return "", err
	}

	v, verr := validatedaemon.Version(ctx, localEndpoint)
	if verr != nil {
		return "", pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "query reference daemon version after successful cross-check", verr)
	}
	return v, nil
}
