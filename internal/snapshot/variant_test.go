package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyFor(t *testing.T) {
	p, ok := PolicyFor(VariantLite)
	require.True(t, ok)
	assert.Equal(t, int64(30000), p.Depth)
	assert.Equal(t, "snapshot", p.Exchange)

	p, ok = PolicyFor(VariantDiff)
	require.True(t, ok)
	assert.Equal(t, int64(3000), p.Depth)
	assert.Equal(t, "snapshot-diff", p.Exchange)

	_, ok = PolicyFor(Variant("bogus"))
	assert.False(t, ok)
}

func TestParseEpochFromPath(t *testing.T) {
	epoch, ok := ParseEpochFromPath("/data/snapshots-archive/lite/forest_snapshot_mainnet_2024-01-01_height_30000.forest.car.zst")
	require.True(t, ok)
	assert.Equal(t, int64(30000), epoch)

	_, ok = ParseEpochFromPath("/data/snapshots-archive/lite/no-height-here.car.zst")
	assert.False(t, ok)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "forest_snapshot_mainnet_2024-01-01_height_30000.forest.car.zst",
		Filename(VariantLite, "mainnet", "2024-01-01", 30000))
	assert.Equal(t, "forest_diff_mainnet_2024-01-01_height_27000+3000.forest.car.zst",
		Filename(VariantDiff, "mainnet", "2024-01-01", 27000))
}

func TestRoundDown(t *testing.T) {
	assert.Equal(t, int64(60000), RoundDown(95000, 30000))
	assert.Equal(t, int64(0), RoundDown(2999, 3000))
	assert.Equal(t, int64(100), RoundDown(100, 0))
}
