// Package validatedaemon orchestrates the secondary reference-daemon
// container the Validate worker uses to cross-check a just-built
// snapshot against an external RPC node (a primary, with a backup used
// only when the primary fails or returns nothing).
//
// Grounded on the original implementation's lotus_validate
// (validate_snapshots.py), translated from the docker-py client calls
// onto github.com/docker/docker/client, and from requests.post onto a
// minimal JSON-RPC client speaking the same Filecoin.* methods.
package validatedaemon

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

// Config describes the reference-daemon container: which image to run,
// what to name it, and how the snapshot under test reaches it.
type Config struct {
	Image                string
	ContainerName        string
	DockerNetwork        string
	HostSnapshotDir      string
	ContainerSnapshotDir string
}

// Manager owns the reference-daemon container's lifecycle: create,
// start, stream its logs to this process's own stdout, and tear
// it down unconditionally on every exit path.
type Manager struct {
	docker *client.Client
	cfg    Config
}

// NewManager builds a Manager against an already-configured Docker API
// client (client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())).
func NewManager(docker *client.Client, cfg Config) *Manager {
	return &Manager{docker: docker, cfg: cfg}
}

// Start tears down any leftover instance of the container, then creates
// and starts a fresh one importing snapshotPath, matching the original's
// "lotus daemon --import-snapshot <path>" invocation.
func (m *Manager) Start(ctx context.Context, snapshotPath string) error {
	if _, err := reference.ParseNormalizedNamed(m.cfg.Image); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "parse reference-daemon image", err)
	}

	_ = m.Teardown(context.Background())

	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(m.cfg.DockerNetwork),
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: m.cfg.HostSnapshotDir, Target: m.cfg.ContainerSnapshotDir},
		},
	}

	containerCfg := &container.Config{
		Image:      m.cfg.Image,
		Entrypoint: []string{"/bin/bash", "-c"},
		Cmd:        []string{fmt.Sprintf("lotus daemon --import-snapshot %s", snapshotPath)},
		User:       "root",
		Tty:        false,
	}

	created, err := m.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, m.cfg.ContainerName)
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "create reference-daemon container", err)
	}

	if err := m.docker.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "start reference-daemon container", err)
	}

	go m.streamLogs(created.ID)

	return nil
}

// streamLogs copies the container's combined stdout/stderr to this
// process's own stdout, matching the original's "redirecting its logs to
// the host PID-1 streams".
func (m *Manager) streamLogs(containerID string) {
	rc, err := m.docker.ContainerLogs(context.Background(), containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return
	}
	defer rc.Close()
	_, _ = io.Copy(os.Stdout, rc)
}

// Teardown stops and force-removes the container unconditionally. Safe
// to call when no such container exists. This is the "restart the daemon
// container on all exit paths" guarantee of §4.5 of SPEC_FULL.md.
func (m *Manager) Teardown(ctx context.Context) error {
	timeout := 30
	_ = m.docker.ContainerStop(ctx, m.cfg.ContainerName, container.StopOptions{Timeout: &timeout})
	return m.docker.ContainerRemove(ctx, m.cfg.ContainerName, container.RemoveOptions{Force: true})
}
