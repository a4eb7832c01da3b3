// Package compute implements the Compute worker: it drives chain state
// forward in batches of epochs until the current head is reached,
// publishing each completed batch's cursor so Build can resume from it.
//
// Grounded on the original implementation's compute_state.py main loop.
package compute

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

// readiness reports whether this process is ready to serve traffic; a
// minimal interface lets tests substitute a fake.
type readiness interface {
	SetReady(bool)
}

// Run executes the Compute worker loop until ctx is canceled.
func Run(ctx context.Context, cfg config.ComputeConfig, reg *prometheus.Registry, srv *server.Server) error {
	return run(ctx, cfg, reg, srv)
}

func run(ctx context.Context, cfg config.ComputeConfig, reg *prometheus.Registry, ready readiness) error {
	b, err := broker.Connect(ctx, broker.Config{Host: cfg.Broker.Host, User: cfg.Broker.User, Password: cfg.Broker.Password})
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "connect to broker", err)
	}
	defer b.Close()

	if err := b.Setup([]broker.Stream{broker.StreamCompute}); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "declare compute topology", err)
	}

	notifier := notify.NewNotifier(cfg.Notify.Token, cfg.Notify.Channel)
	m := metrics.New(reg, "compute")
	runner := chaintool.NewRunner()

	if ready != nil {
		ready.SetReady(true)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		advanced, err := computeOnce(ctx, cfg, b, runner, notifier, m)
		if err != nil {
			if pipelineerrors.IsRetryable(classify(err)) {
				slog.Warn("compute iteration failed, will retry", "error", err)
			} else {
				return err
			}
		}

		if advanced {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaults.ComputeBatchSleep):
		}
	}
}

func classify(err error) pipelineerrors.ErrorCode {
	var se *pipelineerrors.StructuredError
	if e, ok := err.(*pipelineerrors.StructuredError); ok {
		se = e
	}
	if se == nil {
		return pipelineerrors.ErrCodeTransient
	}
	return se.Code
}

// computeOnce runs one pass of the outer loop: resolve head, recover the
// cursor, and advance through batches until head is reached or a batch
// fails (§4.2 of SPEC_FULL.md).
func computeOnce(ctx context.Context, cfg config.ComputeConfig, b *broker.Client, runner *chaintool.Runner, notifier notify.Notifier, m *metrics.Metrics) (advanced bool, err error) {
	env, err := chaintool.BuildEnv(cfg.Forest.TokenPath, cfg.Forest.Host, cfg.Forest.RPCPort)
	if err != nil {
		return false, pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build chain-tool environment", err)
	}

	head, err := chaintool.CurrentEpoch(ctx, runner, env)
	if err != nil {
		return false, err
	}

	cursor, err := b.ReadEpochCursor(broker.StreamCompute, cfg.DefaultStartEpoch)
	if err != nil {
		return false, pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "read compute cursor", err)
	}
	cursor = snapshot.RoundDown(cursor, cfg.BatchSize)

	for e := cursor; e < head; e += cfg.BatchSize {
		if ctx.Err() != nil {
			return advanced, ctx.Err()
		}

		if err := computeBatch(ctx, cfg, runner, env, e); err != nil {
			slog.Error("compute batch failed", "batch_start", e, "error", err)
			_, _ = notifier.Notify(ctx, fmt.Sprintf("compute batch at epoch %d failed: %v", e, err), notify.StatusFailed, "")
			m.IncFailure()

			select {
			case <-ctx.Done():
				return advanced, ctx.Err()
			case <-time.After(defaults.ComputeFailureBackoff):
			}
			return advanced, nil // outer loop re-queries head and resumes
		}

		next := e + cfg.BatchSize
		if err := b.Produce(ctx, broker.StreamCompute, broker.EpochCursorBody(next)); err != nil {
			return advanced, pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "publish compute cursor", err)
		}
		m.IncSuccess()
		advanced = true

		select {
		case <-ctx.Done():
			return advanced, ctx.Err()
		case <-time.After(defaults.ComputeBatchSleep):
		}
	}

	return advanced, nil
}

// computeBatch invokes the chain tool across [e-offset, e-offset+batch),
// retrying per-epoch on failure (§4.2: "any per-epoch failure is fatal
// for this batch").
func computeBatch(ctx context.Context, cfg config.ComputeConfig, runner *chaintool.Runner, env []string, e int64) error {
	batchStart := e - cfg.BatchEpochOffset
	res, err := runner.Run(ctx, "forest-tool", []string{
		"state", "compute-state",
		"--epoch", fmt.Sprintf("%d", batchStart),
		"--n-epochs", fmt.Sprintf("%d", cfg.BatchSize),
	}, env)
	if err == nil && res.ExitCode == 0 {
		return nil
	}
	if res.IsReentrant() {
		return pipelineerrors.New(pipelineerrors.ErrCodeReentrant, "chain tool re-entrancy lock held")
	}

	// Fallback: retry per-epoch, matching original's "--epoch <e>" (no
	// --n-epochs) fallback path per §12.3(a).
	for epoch := batchStart; epoch < batchStart+cfg.BatchSize; epoch++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r, rerr := runner.Run(ctx, "forest-tool", []string{
			"state", "compute-state",
			"--epoch", fmt.Sprintf("%d", epoch),
		}, env)
		if rerr != nil || r.ExitCode != 0 {
			return pipelineerrors.New(pipelineerrors.ErrCodeToolFailure,
				fmt.Sprintf("compute-state failed at epoch %d", epoch))
		}
	}
	return nil
}
