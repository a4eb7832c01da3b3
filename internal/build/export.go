// Package build implements the Build worker: exporting lite, diff and
// latest-v1/latest-v2 snapshot artifacts via the chain tool, harvesting
// their archive metadata, and publishing the resulting envelope to the
// variant's exchange.
//
// Grounded on the original implementation's build_snapshots.py.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/chaintool"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/defaults"
	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

// basePath returns the staging directory a variant's artifacts are
// written under: archive path for historic variants, the primary
// snapshot path for latest variants.
func basePath(cfg config.BuildConfig, v snapshot.Variant) string {
	switch v {
	case snapshot.VariantLatestV1, snapshot.VariantLatestV2:
		return cfg.SnapshotPath
	default:
		return cfg.SnapshotArchivePath
	}
}

// buildArgs composes the chain-tool argv for exporting v at epoch,
// targeting outputPath, per the "Build procedure" in §4.3 of
// SPEC_FULL.md.
func buildArgs(v snapshot.Variant, epoch, stateRoots int64, outputPath string) (string, []string) {
	switch v {
	case snapshot.VariantDiff:
		return "forest-tool", []string{
			"snapshot", "export-diff",
			"--from", fmt.Sprintf("%d", epoch),
			"--to", fmt.Sprintf("%d", epoch-stateRoots),
			"--output-path", outputPath,
		}
	case snapshot.VariantLatestV1:
		return "forest-tool", []string{
			"snapshot", "export",
			"--tipset", fmt.Sprintf("%d", epoch),
			"--format", "v1",
			"--depth", fmt.Sprintf("%d", stateRoots),
			"--output-path", outputPath,
		}
	case snapshot.VariantLatestV2:
		return "forest-tool", []string{
			"snapshot", "export",
			"--tipset", fmt.Sprintf("%d", epoch),
			"--format", "v2",
			"--depth", fmt.Sprintf("%d", stateRoots),
			"--output-path", outputPath,
		}
	default: // lite
		return "forest-tool", []string{
			"snapshot", "export",
			"--tipset", fmt.Sprintf("%d", epoch),
			"--depth", fmt.Sprintf("%d", stateRoots),
			"--output-path", outputPath,
		}
	}
}

// exportResult is the outcome of one buildVariant attempt. AlreadyBuilt
// is set on the Starting -> (exists? -> Done) transition: the target
// path was already on disk, so neither the export tool nor the
// metadata-harvest subprocesses ran, and Metadata is zero.
type exportResult struct {
	Path         string
	Metadata     snapshot.Metadata
	AlreadyBuilt bool
}

// buildVariant runs the full state machine for one build attempt:
// Starting -> (exists? -> Done) -> Running -> (success -> HarvestMeta ->
// Publish) / (reentrancy -> Backoff -> Starting) / (failure -> notify),
// per §4.3's state machine.
func buildVariant(ctx context.Context, cfg config.BuildConfig, runner *chaintool.Runner, genesisUnix int64, v snapshot.Variant, epoch int64) (exportResult, error) {
	policy, ok := snapshot.PolicyFor(v)
	if !ok {
		return exportResult{}, pipelineerrors.New(pipelineerrors.ErrCodeFatal, "unknown snapshot variant: "+string(v))
	}

	date := snapshot.EpochDate(epoch, genesisUnix, snapshot.SecondsPerEpoch)
	filename := snapshot.Filename(v, cfg.Chain, date, epoch)
	folder := filepath.Join(basePath(cfg, v), policy.Folder)
	targetPath := filepath.Join(folder, filename)

	if _, err := os.Stat(targetPath); err == nil {
		return exportResult{Path: targetPath, AlreadyBuilt: true}, nil
	}

	env, err := chaintool.BuildEnv(cfg.Forest.TokenPath, cfg.Forest.Host, cfg.Forest.RPCPort)
	if err != nil {
		return exportResult{}, pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "build chain-tool environment", err)
	}

	if err := os.MkdirAll(folder, 0o755); err != nil {
		return exportResult{}, pipelineerrors.Wrap(pipelineerrors.ErrCodeFatal, "create snapshot staging folder", err)
	}

	if v == snapshot.VariantLatestV2 {
		if err := chaintool.WaitForF3Ready(ctx, runner, env, defaults.BuildF3ReadyTimeout, defaults.BuildF3ReadyPoll); err != nil {
			return exportResult{}, err
		}
	}

	for {
		tool, args := buildArgs(v, epoch, policy.StateRoots, targetPath)
		res, err := runner.Run(ctx, tool, args, env)
		if err != nil {
			return exportResult{}, pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "run chain-tool export", err)
		}

		if res.ExitCode == 0 {
			resolved, ok := resolveOutputPath(folder, epoch)
			if !ok {
				return exportResult{}, pipelineerrors.New(pipelineerrors.ErrCodeToolFailure, "export reported success but no matching output file was found")
			}
			meta, herr := harvestMetadata(ctx, runner, env, v, epoch, date, resolved)
			if herr != nil {
				return exportResult{}, herr
			}
			return exportResult{Path: resolved, Metadata: meta}, nil
		}

		if res.IsReentrant() {
			select {
			case <-ctx.Done():
				return exportResult{}, ctx.Err()
			case <-time.After(defaults.BuildToolBackoff):
			}
			continue
		}

		return exportResult{}, pipelineerrors.New(pipelineerrors.ErrCodeToolFailure,
			fmt.Sprintf("export exited %d: %s", res.ExitCode, res.Output))
	}
}

// resolveOutputPath scans folder for a file whose basename matches
// height_<epoch>, tolerating whatever extension/suffix the chain tool
// chose (§4.3: "tolerates tool-chosen suffixes").
func resolveOutputPath(folder string, epoch int64) (string, bool) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", false
	}
	needle := fmt.Sprintf("height_%d", epoch)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), needle) {
			return filepath.Join(folder, e.Name()), true
		}
	}
	return "", false
}

// harvestMetadata runs the two auxiliary archive-report invocations,
// parses them, and assembles the full Metadata envelope (§4.3: "harvest
// archive metadata via two auxiliary tool invocations").
func harvestMetadata(ctx context.Context, runner *chaintool.Runner, env []string, v snapshot.Variant, epoch int64, date, path string) (snapshot.Metadata, error) {
	var s snapshot.Snapshot
	s.Network = "" // filled below from the report if present
	s.Epoch = epoch

	for _, args := range [][]string{
		{"archive", "metadata", path},
		{"archive", "info", path},
	} {
		res, err := runner.Run(ctx, "forest-tool", args, env)
		if err != nil || res.ExitCode != 0 {
			return snapshot.Metadata{}, pipelineerrors.New(pipelineerrors.ErrCodeToolFailure,
				fmt.Sprintf("%v failed", args))
		}
		report := chaintool.ParseArchiveReport(res.Output)
		chaintool.MergeIntoSnapshot(report, &s)
	}

	now := time.Now().UTC()
	return snapshot.Metadata{
		Snapshot: s,
		BuildInformation: snapshot.BuildInformation{
			Epoch:          epoch,
			EpochDate:      date,
			BuildPath:      path,
			BuildTimestamp: now.Format(time.RFC3339),
			BuildDate:      now.Format("2006-01-02"),
		},
	}, nil
}
