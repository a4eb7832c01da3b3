package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMetadata() Metadata {
	return Metadata{
		Snapshot: Snapshot{
			SnapshotVersion: "v2",
			HeadTipset:      []string{"bafy1", "bafy2"},
			CARFormat:       "v1",
			Network:         "mainnet",
			Epoch:           30000,
			StateRoots:      900,
			Sha256:          "deadbeef",
		},
		BuildInformation: BuildInformation{
			Epoch:          30000,
			EpochDate:      "2024-01-01",
			BuildPath:      "/data/snapshots-archive/lite/forest_snapshot_mainnet_2024-01-01_height_30000.forest.car.zst",
			BuildTimestamp: "1700000000.000000",
			BuildDate:      "2024-01-01",
			Validation: Validation{
				Success: false,
			},
		},
	}
}

func TestMetadata_RoundTrip(t *testing.T) {
	m := sampleMetadata()
	first, err := m.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(first)
	require.NoError(t, err)

	second, err := decoded.ToJSON()
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestMetadata_CanonicalKeys(t *testing.T) {
	m := sampleMetadata()
	raw, err := m.ToJSON()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))

	buildInfo, ok := generic["Build Information"].(map[string]any)
	require.True(t, ok, "expected top-level 'Build Information' key")
	assert.Equal(t, "2024-01-01", buildInfo["Epoch date"])

	snap, ok := generic["Snapshot"].(map[string]any)
	require.True(t, ok, "expected top-level 'Snapshot' key")
	assert.Equal(t, "mainnet", snap["Network"])
	assert.Equal(t, float64(900), snap["State-roots"])
}

func TestMetadata_FromCanonicalJSON(t *testing.T) {
	raw := []byte(`{
		"Snapshot": {"Network": "calibnet", "Epoch": 100, "State-roots": 900},
		"Build Information": {"Epoch": 100, "Epoch date": "2024-01-01", "Build path": "/x", "Build timestamp": "1.0", "Build date": "2024-01-01", "Validation": {"Success": true, "Forest version": "1.2.3"}}
	}`)
	m, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, "calibnet", m.Snapshot.Network)
	assert.True(t, m.BuildInformation.Validation.Success)
	assert.Equal(t, "1.2.3", m.BuildInformation.Validation.ForestVersion)
}
