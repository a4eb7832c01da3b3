package upload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/config"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
)

func TestResolveTarget_ArchiveBucketForLite(t *testing.T) {
	cfg := config.UploadConfig{Chain: "mainnet"}
	cfg.ObjectStore.ArchiveBucket = "archive"
	cfg.ObjectStore.LatestBucket = "latest"

	bucket, key, variant, err := resolveTarget(cfg, "/data/snapshots-archive/lite/forest_snapshot_mainnet_2024-01-01_height_30000.forest.car.zst")
	require.NoError(t, err)
	assert.Equal(t, "archive", bucket)
	assert.Equal(t, snapshot.VariantLite, variant)
	assert.Equal(t, "mainnet/lite/forest_snapshot_mainnet_2024-01-01_height_30000.forest.car.zst", key)
}

func TestResolveTarget_LatestBucketForLatestV2(t *testing.T) {
	cfg := config.UploadConfig{Chain: "mainnet"}
	cfg.ObjectStore.ArchiveBucket = "archive"
	cfg.ObjectStore.LatestBucket = "latest"

	bucket, _, variant, err := resolveTarget(cfg, "/data/snapshots/latest-v2/forest_snapshot_mainnet_2024-01-01_height_90000.forest.car.zst")
	require.NoError(t, err)
	assert.Equal(t, "latest", bucket)
	assert.Equal(t, snapshot.VariantLatestV2, variant)
}

func TestResolveTarget_UnknownFolderFails(t *testing.T) {
	cfg := config.UploadConfig{Chain: "mainnet"}
	_, _, _, err := resolveTarget(cfg, "/data/snapshots/mystery/foo.car.zst")
	assert.Error(t, err)
}

func TestSha256File_MatchesKnownDigest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	sum, err := sha256File(path)
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", sum)
}
