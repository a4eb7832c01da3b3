package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/chaintool"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

func TestBasePath_RoutesByVariant(t *testing.T) {
	cfg := config.BuildConfig{SnapshotPath: "/data/snapshots", SnapshotArchivePath: "/data/snapshots-archive"}

	assert.Equal(t, "/data/snapshots", basePath(cfg, snapshot.VariantLatestV1))
	assert.Equal(t, "/data/snapshots", basePath(cfg, snapshot.VariantLatestV2))
	assert.Equal(t, "/data/snapshots-archive", basePath(cfg, snapshot.VariantLite))
	assert.Equal(t, "/data/snapshots-archive", basePath(cfg, snapshot.VariantDiff))
}

func TestBuildArgs_Diff(t *testing.T) {
	_, args := buildArgs(snapshot.VariantDiff, 6000, 3000, "/out/diff.car.zst")
	assert.Contains(t, args, "export-diff")
	assert.Contains(t, args, "--from")
	assert.Contains(t, args, "6000")
	assert.Contains(t, args, "--to")
	assert.Contains(t, args, "3000")
}

func TestBuildArgs_LatestV2_HasFormatV2(t *testing.T) {
	_, args := buildArgs(snapshot.VariantLatestV2, 90000, 2000, "/out/latest.car.zst")
	assert.Contains(t, args, "--format")
	assert.Contains(t, args, "v2")
}

func TestBuildArgs_Lite_NoFormatFlag(t *testing.T) {
	_, args := buildArgs(snapshot.VariantLite, 30000, 900, "/out/lite.car.zst")
	assert.NotContains(t, args, "--format")
	assert.Contains(t, args, "--tipset")
}

func TestResolveOutputPath_FindsMatchingHeightFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "forest_snapshot_mainnet_2024-01-01_height_30000.forest.car.zst"), []byte("x"), 0o644))

	path, ok := resolveOutputPath(dir, 30000)
	require.True(t, ok)
	assert.Contains(t, path, "height_30000")
}

func TestResolveOutputPath_MissReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	_, ok := resolveOutputPath(dir, 30000)
	assert.False(t, ok)
}

// TestBuildVariant_ExistingTargetSkipsSubprocesses exercises the
// Starting -> (exists? -> Done) transition: when the target path is
// already on disk, buildVariant must return without spawning the
// export tool or either archive-report subprocess. The assigned runner
// would fail loudly (forest-tool is not on the test PATH) if invoked,
// so a nil error here is itself proof no subprocess ran.
func TestBuildVariant_ExistingTargetSkipsSubprocesses(t *testing.T) {
	dir := t.TempDir()
	cfg := config.BuildConfig{Chain: "mainnet", SnapshotArchivePath: dir}

	const epoch = int64(60000)
	const genesisUnix = int64(1598306400)
	date := snapshot.EpochDate(epoch, genesisUnix, snapshot.SecondsPerEpoch)
	policy, ok := snapshot.PolicyFor(snapshot.VariantLite)
	require.True(t, ok)
	folder := filepath.Join(dir, policy.Folder)
	require.NoError(t, os.MkdirAll(folder, 0o755))
	targetPath := filepath.Join(folder, snapshot.Filename(snapshot.VariantLite, cfg.Chain, date, epoch))
	require.NoError(t, os.WriteFile(targetPath, []byte("already built"), 0o644))

	result, err := buildVariant(context.Background(), cfg, chaintool.NewRunner(), genesisUnix, snapshot.VariantLite, epoch)
	require.NoError(t, err)
	assert.True(t, result.AlreadyBuilt)
	assert.Equal(t, targetPath, result.Path)
	assert.Equal(t, snapshot.Metadata{}, result.Metadata)
}
