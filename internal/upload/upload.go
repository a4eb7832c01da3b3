// Package upload implements the Upload worker: at-least-once conveyance
// of a just-built snapshot blob, its sha256 sidecar and its metadata
// sidecar to object storage, deduped against an existing HEAD.
//
// Grounded on the original implementation's upload_snapshots.py.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/broker"
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

// sourceStreams are polled round-robin, one message per iteration, per
// §4.4 of SPEC_FULL.md.
var sourceStreams = []broker.Stream{broker.StreamSnapshot, broker.StreamSnapshotDiff, broker.StreamSnapshotLatest}

// Run executes the Upload worker loop until ctx is canceled.
func Run(ctx context.Context, cfg config.UploadConfig, reg *prometheus.Registry, srv *server.Server) error {
	return run(ctx, cfg, reg, srv)
}

func run(ctx context.Context, cfg config.UploadConfig, reg *prometheus.Registry, ready readiness) error {
	b, err := broker.Connect(ctx, broker.Config{Host: cfg.Broker.Host, User: cfg.Broker.User, Password: cfg.Broker.Password})
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "connect to broker", err)
	}
	defer b.Close()

	streams := append(append([]broker.Stream{}, sourceStreams...), broker.StreamUpload, broker.StreamUploadFailed)
	if err := b.Setup(streams); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "declare upload topology", err)
	}

	store, err := objectstore.NewClient(ctx, objectstore.Config{
		EndpointURL:     cfg.ObjectStore.EndpointURL,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
	})
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build object-store client", err)
	}

	notifier := notify.NewNotifier(cfg.Notify.Token, cfg.Notify.Channel)
	m := metrics.New(reg, "upload")

	if ready != nil {
		ready.SetReady(true)
	}

	w := &worker{cfg: cfg, b: b, store: store, notifier: notifier, m: m}
	return w.loop(ctx)
}

type worker struct {
	cfg      config.UploadConfig
	b        *broker.Client
	store    *objectstore.Client
	notifier notify.Notifier
	m        *metrics.Metrics
}

// loop polls sourceStreams round-robin. It only sleeps once a full
// round finds every stream empty, so a steady arrival rate on any one
// stream never waits behind the others.
func (w *worker) loop(ctx context.Context) error {
	misses := 0
	for i := 0; ; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		stream := sourceStreams[i%len(sourceStreams)]

		d, ok, err := w.b.Consume(stream)
		if err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "consume from "+string(stream), err)
		}
		if !ok {
			misses++
			if misses < len(sourceStreams) {
				continue
			}
			misses = 0
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(defaults.UploadPollInterval):
			}
			continue
		}
		misses = 0

		w.process(ctx, d)
	}
}

// process runs one message's upload in a subordinate task joined with
// UploadTimeout, per §5's per-stage concurrency model. On timeout the
// task is abandoned, not killed, and the message is requeued.
func (w *worker) process(ctx context.Context, d broker.Delivery) {
	meta, err := snapshot.FromJSON(d.Body)
	if err != nil {
		slog.Error("upload: malformed snapshot envelope, rejecting", "error", err)
		_ = d.Reject(false)
		return
	}

	tctx, cancel := context.WithTimeout(ctx, defaults.UploadTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(tctx)
	g.Go(func() error { return w.upload(gctx, &meta) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case <-tctx.Done():
		slog.Warn("upload timed out, requeueing", "path", meta.BuildInformation.BuildPath)
		_ = d.Reject(true)
		w.m.IncFailure()

	case err := <-done:
		if err != nil {
			slog.Error("upload failed", "path", meta.BuildInformation.BuildPath, "error", err)
			w.publishFailure(ctx, meta, err)
			_ = d.Reject(false)
			w.m.IncFailure()
			return
		}

		if err := w.publishSuccess(ctx, meta); err != nil {
			slog.Error("upload: publish success envelope failed, requeueing", "error", err)
			_ = d.Reject(true)
			w.m.IncFailure()
			return
		}
		_ = d.Ack()
		w.m.IncSuccess()
	}
}

// upload performs the three-put upload procedure of §4.4: sha256
// sidecar, metadata sidecar, then the deduped main blob. meta.Snapshot.Sha256
// is filled in before the metadata sidecar is written.
func (w *worker) upload(ctx context.Context, meta *snapshot.Metadata) error {
	path := meta.BuildInformation.BuildPath
	bucket, key, _, err := resolveTarget(w.cfg, path)
	if err != nil {
		return err
	}

	return w.m.TrackUpload(ctx, func(ctx context.Context) error {
		sum, err := sha256File(path)
		if err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "hash snapshot blob", err)
		}
		if err := w.store.PutSidecar(ctx, bucket, key+".sha256sum", strings.NewReader(sum)); err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "upload sha256 sidecar", err)
		}

		meta.Snapshot.Sha256 = sum
		body, err := meta.ToJSON()
		if err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "serialize metadata sidecar", err)
		}
		if err := w.store.PutSidecar(ctx, bucket, key+".metadata.json", bytes.NewReader(body)); err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "upload metadata sidecar", err)
		}

		f, err := os.Open(path)
		if err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "open snapshot blob", err)
		}
		defer f.Close()

		if _, err := w.store.PutBlobDeduped(ctx, bucket, key, f); err != nil {
			return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "upload snapshot blob", err)
		}
		return nil
	})
}

func (w *worker) publishSuccess(ctx context.Context, meta snapshot.Metadata) error {
	body, err := meta.ToJSON()
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "serialize upload envelope", err)
	}
	if err := w.b.Produce(ctx, broker.StreamUpload, body); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeTransient, "publish upload envelope", err)
	}
	_, _ = w.notifier.Notify(ctx, fmt.Sprintf("uploaded %s", filepath.Base(meta.BuildInformation.BuildPath)),
		notify.StatusSuccess, meta.BuildInformation.BuildTimestamp)
	return nil
}

func (w *worker) publishFailure(ctx context.Context, meta snapshot.Metadata, cause error) {
	if body, err := meta.ToJSON(); err == nil {
		_ = w.b.Produce(ctx, broker.StreamUploadFailed, body)
	}
	_, _ = w.notifier.Notify(ctx, fmt.Sprintf("upload of %s failed: %v", filepath.Base(meta.BuildInformation.BuildPath), cause),
		notify.StatusFailed, meta.BuildInformation.BuildTimestamp)
}

// resolveTarget derives the object-store bucket and key for a build path,
// recovering the variant from the staging folder directly above the
// basename (§4.4: "Bucket selection ... Key layout: <network>/<folder>/<basename>").
func resolveTarget(cfg config.UploadConfig, path string) (bucket, key string, variant snapshot.Variant, err error) {
	folder := filepath.Base(filepath.Dir(path))
	v, ok := snapshot.VariantForFolder(folder)
	if !ok {
		return "", "", "", pipelineerrors.New(pipelineerrors.ErrCodeFatal, "cannot determine snapshot variant from build path: "+path)
	}

	bucket = cfg.ObjectStore.ArchiveBucket
	if v == snapshot.VariantLatestV1 || v == snapshot.VariantLatestV2 {
		bucket = cfg.ObjectStore.LatestBucket
	}
	key = fmt.Sprintf("%s/%s/%s", cfg.Chain, folder, filepath.Base(path))
	return bucket, key, v, nil
}
