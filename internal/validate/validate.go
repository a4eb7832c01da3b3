// Package validate implements the Validate worker: runs the chain
// tool's own validator and, for lite/latest-v1/latest-v2 artifacts, a
// secondary reference-daemon cross-check, then writes the resulting
// validation record back to object storage.
//
// Grounded on the original implementation's validate_snapshots.py.
package validate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/docker/docker/client"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/broker"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/chaintool"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/defaults"
	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/metrics"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/notify"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/objectstore"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/server"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

type readiness interface {
	SetReady(bool)
}

// Run executes the Validate worker loop until ctx is canceled.
func Run(ctx context.Context, cfg config.ValidateConfig, reg *prometheus.Registry, srv *server.Server) error {
	return run(ctx, cfg, reg, srv)
}

func run(ctx context.Context, cfg config.ValidateConfig, reg *prometheus.Registry, ready readiness) error {
	b, err := broker.Connect(ctx, broker.Config{Host: cfg.Broker.Host, User: cfg.Broker.User, Password: cfg.Broker.Password})
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "connect to broker", err)
	}
	defer b.Close()

	if err := b.Setup([]broker.Stream{broker.StreamUpload, broker.StreamValidate, broker.StreamValidateFailed}); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "declare validate topology", err)
	}

	store, err := objectstore.NewClient(ctx, objectstore.Config{
		EndpointURL:     cfg.ObjectStore.EndpointURL,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
	})
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build object-store client", err)
	}

	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build docker client", err)
	}

	runner := chaintool.NewRunner()
	notifier := notify.NewNotifier(cfg.Notify.Token, cfg.Notify.Channel)
	m := metrics.New(reg, "validate")

	env, err := chaintool.BuildEnv(cfg.Forest.TokenPath, cfg.Forest.Host, cfg.Forest.RPCPort)
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build chain-tool environment", err)
	}

	if ready != nil {
		ready.SetReady(true)
	}

	w := &worker{cfg: cfg, b: b, store: store, docker: docker, runner: runner, env: env, notifier: notifier, m: m}
	return w.loop(ctx)
}

type worker struct {
	cfg      config.ValidateConfig
	b        *broker.Client
	store    *objectstore.Client
	docker   *client.Client
	runner   *chaintool.Runner
	env      []string
	notifier notify.Notifier
	m        *metrics.Metrics
}

// loop consumes the upload stream one message at a time, sleeping when
// it is empty (§4.5/original's QUEUE_WAIT_TIMEOUT poll).
func (w *worker) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		d, ok, err := w.b.Consume(broker.StreamUpload)
		if err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "consume from upload", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(defaults.ValidatePollInterval):
			}
			continue
		}

		w.process(ctx, d)
	}
}

// process runs one message's validation in a subordinate task joined
// with ValidateTimeout, matching Upload's timeout-join model (§5).
func (w *worker) process(ctx context.Context, d broker.Delivery) {
	meta, err := snapshot.FromJSON(d.Body)
	if err != nil {
		slog.Error("validate: malformed upload envelope, rejecting", "error", err)
		_ = d.Reject(false)
		return
	}

	tctx, cancel := context.WithTimeout(ctx, defaults.ValidateTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(tctx)
	g.Go(func() error { return w.validate(gctx, &meta) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case <-tctx.Done():
		slog.Warn("validate timed out, requeueing", "path", meta.BuildInformation.BuildPath)
		_ = d.Reject(true)
		w.m.IncFailure()

	case err := <-done:
		if err != nil {
			slog.Error("validate failed", "path", meta.BuildInformation.BuildPath, "error", err)
			w.publishFailure(ctx, meta, err)
			_ = d.Reject(false)
			w.m.IncFailure()
			return
		}

		if err := w.publishSuccess(ctx, meta); err != nil {
			slog.Error("validate: publish success envelope failed, requeueing", "error", err)
			_ = d.Reject(true)
			w.m.IncFailure()
			return
		}
		_ = d.Ack()
		w.m.IncSuccess()
	}
}

// validate runs both validation passes against meta's build path and,
// on success, fills in its Validation record and writes the updated
// metadata sidecar back to object storage (§4.5 "Completion").
func (w *worker) validate(ctx context.Context, meta *snapshot.Metadata) error {
	path := meta.BuildInformation.BuildPath
	folder := filepath.Base(filepath.Dir(path))
	variant, ok := snapshot.VariantForFolder(folder)
	if !ok {
		return pipelineerrors.New(pipelineerrors.ErrCodeFatal, "cannot determine snapshot variant from build path: "+path)
	}

	if err := primaryValidate(ctx, w.cfg, w.runner, w.env, variant, path); err != nil {
		return err
	}

	forestVer, err := forestVersion(ctx, w.runner, w.env)
	if err != nil {
		return err
	}

	var lotusVer string
	if variant == snapshot.VariantLite || variant == snapshot.VariantLatestV1 || variant == snapshot.VariantLatestV2 {
		lotusVer, err = secondaryValidate(ctx, w.docker, w.cfg, path)
		if err != nil {
			return err
		}
	}

	meta.BuildInformation.Validation = snapshot.Validation{
		Success:        true,
		ForestVersion:  forestVer,
		LotusVersion:   lotusVer,
		ValidationDate: time.Now().UTC().Format("2006-01-02"),
	}

	return w.writeMetadataSidecar(ctx, *meta, folder, path, variant)
}

func (w *worker) writeMetadataSidecar(ctx context.Context, meta snapshot.Metadata, folder, path string, v snapshot.Variant) error {
	bucket := w.cfg.ObjectStore.ArchiveBucket
	if v == snapshot.VariantLatestV1 || v == snapshot.VariantLatestV2 {
		bucket = w.cfg.ObjectStore.LatestBucket
	}
	key := fmt.Sprintf("%s/%s/%s.metadata.json", w.cfg.Chain, folder, filepath.Base(path))

	body, err := meta.ToJSON()
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "serialize updated metadata", err)
	}
	if err := w.store.PutSidecar(ctx, bucket, key, bytes.NewReader(body)); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "write validated metadata sidecar", err)
	}
	return nil
}

func (w *worker) publishSuccess(ctx context.Context, meta snapshot.Metadata) error {
	body, err := meta.ToJSON()
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "serialize validate envelope", err)
	}
	if err := w.b.Produce(ctx, broker.StreamValidate, body); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "publish validate envelope", err)
	}
	_, _ = w.notifier.Notify(ctx, fmt.Sprintf("validated %s", filepath.Base(meta.BuildInformation.BuildPath)),
		notify.StatusSuccess, meta.BuildInformation.BuildTimestamp)
	return nil
}

func (w *worker) publishFailure(ctx context.Context, meta snapshot.Metadata, cause error) {
	if body, err := meta.ToJSON(); err == nil {
		_ = w.b.Produce(ctx, broker.StreamValidateFailed, body)
	}
	_, _ = w.notifier.Notify(ctx, fmt.Sprintf("validation of %s failed: %v", filepath.Base(meta.BuildInformation.BuildPath), cause),
		notify.StatusFailed, meta.BuildInformation.BuildTimestamp)
}
