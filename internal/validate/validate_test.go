package validate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

func TestRequiresValidation(t *testing.T) {
	assert.True(t, requiresValidation(snapshot.VariantLite))
	assert.True(t, requiresValidation(snapshot.VariantLatestV1))
	assert.True(t, requiresValidation(snapshot.VariantLatestV2))
	assert.False(t, requiresValidation(snapshot.VariantDiff))
}

func TestPrimaryArgs_Mainnet(t *testing.T) {
	cfg := config.ValidateConfig{Chain: config.ChainMainnet, PrimarySubcommand: "validate-diffs"}
	args := primaryArgs(cfg, "/data/lite/snapshot.car.zst")

	assert.Equal(t, []string{
		"snapshot", "validate-diffs", "--check-network", "mainnet",
		"--check-links", "0", "--check-stateroots", "5",
		"/data/lite/snapshot.car.zst",
	}, args)
}

func TestPrimaryArgs_NonMainnetUsesLatestV1Depth(t *testing.T) {
	cfg := config.ValidateConfig{Chain: "calibnet", PrimarySubcommand: "validate-diffs"}
	args := primaryArgs(cfg, "/data/latest/snapshot.car.zst")

	policy, ok := snapshot.PolicyFor(snapshot.VariantLatestV1)
	assert.True(t, ok)

	assert.Contains(t, args, "--check-links")
	assert.Contains(t, args, fmt.Sprintf("%d", policy.Depth))
	assert.Contains(t, args, "--check-stateroots")
	assert.Contains(t, args, fmt.Sprintf("%d", policy.StateRoots))
}
