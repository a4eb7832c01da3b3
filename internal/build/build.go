package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/broker"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/chaintool"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/defaults"
	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/metrics"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/notify"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/server"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

type readiness interface {
	SetReady(bool)
}

// Run executes the Build worker until ctx is canceled, in historic or
// latest mode depending on cfg.BuildLatestSnapshots.
func Run(ctx context.Context, cfg config.BuildConfig, reg *prometheus.Registry, srv *server.Server) error {
	return run(ctx, cfg, reg, srv)
}

func run(ctx context.Context, cfg config.BuildConfig, reg *prometheus.Registry, ready readiness) error {
	b, err := broker.Connect(ctx, broker.Config{Host: cfg.Broker.Host, User: cfg.Broker.User, Password: cfg.Broker.Password})
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "connect to broker", err)
	}
	defer b.Close()

	streams := []broker.Stream{broker.StreamSnapshot, broker.StreamSnapshotDiff, broker.StreamSnapshotLatest, broker.StreamCompute}
	if err := b.Setup(streams); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "declare build topology", err)
	}

	runner := chaintool.NewRunner()
	notifier := notify.NewNotifier(cfg.Notify.Token, cfg.Notify.Channel)
	m := metrics.New(reg, "build")

	env, err := chaintool.BuildEnv(cfg.Forest.TokenPath, cfg.Forest.Host, cfg.Forest.RPCPort)
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build chain-tool environment", err)
	}
	genesisUnix, err := chaintool.GenesisTimestamp(ctx, runner, env)
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "resolve genesis timestamp", err)
	}

	if ready != nil {
		ready.SetReady(true)
	}

	w := &worker{cfg: cfg, b: b, runner: runner, notifier: notifier, m: m, genesisUnix: genesisUnix, env: env}

	if cfg.BuildLatestSnapshots {
		return w.runLatestMode(ctx)
	}
	return w.runHistoricMode(ctx)
}

type worker struct {
	cfg         config.BuildConfig
	b           *broker.Client
	runner      *chaintool.Runner
	notifier    notify.Notifier
	m           *metrics.Metrics
	genesisUnix int64
	env         []string
}

// runHistoricMode backfills lite and diff snapshots across history,
// per the "Historic mode" algorithm in §4.3 of SPEC_FULL.md.
func (w *worker) runHistoricMode(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		advanced, err := w.historicPass(ctx)
		if err != nil {
			if !pipelineerrors.IsRetryable(classify(err)) {
				return err
			}
			slog.Warn("historic build pass failed, will retry", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(defaults.BuildToolBackoff):
			}
			continue
		}

		if advanced {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaults.BuildIdleSleep):
		}
	}
}

func (w *worker) historicPass(ctx context.Context) (bool, error) {
	head, err := chaintool.CurrentEpoch(ctx, w.runner, w.env)
	if err != nil {
		return false, err
	}

	litePolicy, _ := snapshot.PolicyFor(snapshot.VariantLite)
	diffPolicy, _ := snapshot.PolicyFor(snapshot.VariantDiff)

	liteCursor, err := w.readEnvelopeCursor(broker.StreamSnapshot, 0)
	if err != nil {
		return false, pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "read lite cursor", err)
	}
	liteCursor = snapshot.RoundDown(liteCursor, litePolicy.Depth)

	diffCursor, err := w.readEnvelopeCursor(broker.StreamSnapshotDiff, 0)
	if err != nil {
		return false, pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "read diff cursor", err)
	}
	diffCursor = snapshot.RoundDown(diffCursor, diffPolicy.Depth)

	advanced := false

	if head-liteCursor > litePolicy.Depth {
		for e := liteCursor + litePolicy.Depth; e < head; e += litePolicy.Depth {
			if ctx.Err() != nil {
				return advanced, ctx.Err()
			}
			if w.cfg.WaitForComputation {
				if err := w.waitForComputation(ctx, e); err != nil {
					return advanced, err
				}
			}
			if err := w.buildAndPublish(ctx, snapshot.VariantLite, broker.StreamSnapshot, e); err != nil {
				return advanced, err
			}
			advanced = true
		}
	}

	if head-diffCursor > diffPolicy.Depth {
		for e := diffCursor + diffPolicy.Depth; e < head; e += diffPolicy.Depth {
			if ctx.Err() != nil {
				return advanced, ctx.Err()
			}
			if err := w.buildAndPublish(ctx, snapshot.VariantDiff, broker.StreamSnapshotDiff, e); err != nil {
				return advanced, err
			}
			advanced = true
		}
	}

	return advanced, nil
}

// runLatestMode builds a fresh latest-v2 (and, if enabled, latest-v1)
// snapshot on a fixed cadence, per the "Latest mode" algorithm in §4.3.
func (w *worker) runLatestMode(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := w.latestPass(ctx); err != nil {
			if !pipelineerrors.IsRetryable(classify(err)) {
				return err
			}
			slog.Warn("latest build pass failed, will retry", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(w.cfg.BuildDelay) * time.Second):
		}
	}
}

func (w *worker) latestPass(ctx context.Context) error {
	head, err := chaintool.CurrentEpoch(ctx, w.runner, w.env)
	if err != nil {
		return err
	}

	previous, err := w.readEnvelopeCursor(broker.StreamSnapshotLatest, 0)
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "read latest cursor", err)
	}

	twoHourEpochs := int64((2 * time.Hour) / (snapshot.SecondsPerEpoch * time.Second))
	if head-previous < twoHourEpochs {
		return nil
	}

	if err := w.buildAndPublish(ctx, snapshot.VariantLatestV2, broker.StreamSnapshotLatest, head); err != nil {
		return err
	}

	if w.cfg.BuildLatestV1 {
		if err := w.buildAndPublish(ctx, snapshot.VariantLatestV1, broker.StreamSnapshotLatest, head); err != nil {
			return err
		}
	}

	return nil
}

// waitForComputation polls the compute cursor until it exceeds epoch,
// per §4.3's historic-mode step 3.
func (w *worker) waitForComputation(ctx context.Context, epoch int64) error {
	for {
		cursor, err := w.b.ReadEpochCursor(broker.StreamCompute, 0)
		if err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "read compute cursor", err)
		}
		if cursor > epoch {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaults.BuildComputeWaitPoll):
		}
	}
}

// buildAndPublish runs the build state machine for one variant/epoch
// and, on success, publishes the resulting envelope to exchange.
func (w *worker) buildAndPublish(ctx context.Context, v snapshot.Variant, exchange broker.Stream, epoch int64) error {
	result, err := buildVariant(ctx, w.cfg, w.runner, w.genesisUnix, v, epoch)
	if err != nil {
		slog.Error("build failed", "variant", v, "epoch", epoch, "error", err)
		_, _ = w.notifier.Notify(ctx, fmt.Sprintf("build of %s snapshot at epoch %d failed: %v", v, epoch, err), notify.StatusFailed, "")
		w.m.IncFailure()
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, fmt.Sprintf("build %s snapshot at epoch %d", v, epoch), err)
	}

	if result.AlreadyBuilt {
		slog.Debug("build target already exists, skipping publish", "variant", v, "epoch", epoch, "path", result.Path)
		return nil
	}

	body, err := result.Metadata.ToJSON()
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "serialize snapshot metadata", err)
	}
	if err := w.b.Produce(ctx, exchange, body); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "publish snapshot envelope", err)
	}
	w.m.IncSuccess()
	_, _ = w.notifier.Notify(ctx, fmt.Sprintf("built %s snapshot at epoch %d: %s", v, epoch, result.Path), notify.StatusSuccess, result.Metadata.BuildInformation.BuildTimestamp)
	return nil
}

// readEnvelopeCursor recovers a cursor from the head of a snapshot stream,
// whose messages are JSON Metadata envelopes: it returns the envelope's
// build epoch, or def when the head queue is empty or the body is not a
// valid envelope.
func (w *worker) readEnvelopeCursor(s broker.Stream, def int64) (int64, error) {
	body, ok, err := w.b.ConsumeHead(s)
	if err != nil || !ok {
		return def, err
	}
	meta, err := snapshot.FromJSON(body)
	if err != nil {
		return def, nil
	}
	return meta.BuildInformation.Epoch, nil
}

func classify(err error) pipelineerrors.ErrorCode {
	if se, ok := err.(*pipelineerrors.StructuredError); ok {
		return se.Code
	}
	return pipelineerrors.ErrCodeTransient
}
