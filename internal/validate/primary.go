package validate

import (
	"context"
	"fmt"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/chaintool"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

// requiresValidation reports whether a variant is in scope for either
// validation pass. diff snapshots are skipped by both, grounded on the
// original implementation's forest_validate/lotus_validate, which only
// ever test their `snapshot_type in [lite, latest, latest-v2]` guard —
// a diff artifact is published to `validate` having received no check at
// all, and that quirk is preserved here rather than "fixed".
func requiresValidation(v snapshot.Variant) bool {
	return v != snapshot.VariantDiff
}

// primaryArgs composes the chain-tool argv for the primary validation
// pass, branching on chain the same way the original's forest_validate
// does: mainnet gets a light check (link/stateroot depth capped low),
// any other network gets the full latest-variant depth.
func primaryArgs(cfg config.ValidateConfig, path string) []string {
	args := []string{"snapshot", cfg.PrimarySubcommand, "--check-network", cfg.Chain}

	if cfg.Chain == config.ChainMainnet {
		args = append(args, "--check-links", "0", "--check-stateroots", "5")
	} else {
		policy, _ := snapshot.PolicyFor(snapshot.VariantLatestV1)
		args = append(args,
			"--check-links", fmt.Sprintf("%d", policy.Depth),
			"--check-stateroots", fmt.Sprintf("%d", policy.StateRoots))
	}

	return append(args, path)
}

// primaryValidate runs the chain tool's own validator against path, the
// first of the two independent validations required by §4.5 of
// SPEC_FULL.md.
func primaryValidate(ctx context.Context, cfg config.ValidateConfig, runner *chaintool.Runner, env []string, v snapshot.Variant, path string) error {
	if !requiresValidation(v) {
		return nil
	}

	res, err := runner.Run(ctx, "forest-tool", primaryArgs(cfg, path), env)
	if err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "run primary validation", err)
	}
	if res.ExitCode != 0 {
		return pipelineerrors.New(pipelineerrors.ErrCodeToolFailure, "primary validation exited "+fmt.Sprintf("%d", res.ExitCode)+": "+res.Output)
	}
	return nil
}

// forestVersion queries the chain tool's own version string, used to
// populate the validation record's forest_version field.
func forestVersion(ctx context.Context, runner *chaintool.Runner, env []string) (string, error) {
	res, err := runner.Run(ctx, "forest-cli", []string{"--version"}, env)
	if err != nil || res.ExitCode != 0 {
		return "", pipelineerrors.New(pipelineerrors.ErrCodeToolFailure, "query forest-cli version")
	}
	return res.Output, nil
}
