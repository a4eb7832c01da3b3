package chaintool

import (
	"context"
	"testing"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_IsReentrant(t *testing.T) {
	r := Result{ExitCode: 1, Output: "error: Another chain export job is still in progress\n"}
	assert.True(t, r.IsReentrant())

	r2 := Result{ExitCode: 1, Output: "error: disk full"}
	assert.False(t, r2.IsReentrant())
}

func TestRunner_Run(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), "echo", []string{"hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Output, "hello")
}

func TestRunner_Run_NonZeroExit(t *testing.T) {
	r := NewRunner()
	res, err := r.Run(context.Background(), "false", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestParseArchiveReport(t *testing.T) {
	report := "Network: mainnet\n" +
		"Epoch: 30000\n" +
		"State-roots: 900\n" +
		"Head tipset: bafy1 bafy2\n" +
		"Messages sets: 12\n" +
		"Sha256: deadbeef\n" +
		"  continuation of previous line is not expected here\n" +
		"CAR format: v1\n"

	out := ParseArchiveReport(report)
	assert.Equal(t, "mainnet", out["Network"])
	assert.Equal(t, "30000", out["Epoch"])
	assert.Equal(t, "v1", out["CAR format"])
}

func TestParseArchiveReport_Continuation(t *testing.T) {
	report := "Head tipset: bafy1\n  bafy2\n  bafy3\nNetwork: calibnet\n"
	out := ParseArchiveReport(report)
	assert.Equal(t, "bafy1 bafy2 bafy3", out["Head tipset"])
	assert.Equal(t, "calibnet", out["Network"])
}

func TestParseGenesisOutput_RealShapeIsHeadInfoObject(t *testing.T) {
	ts, err := parseGenesisOutput(`{"Blocks":[{"Timestamp":1598306400},{"Timestamp":1598306400}],"Height":0}`)
	require.NoError(t, err)
	assert.Equal(t, int64(1598306400), ts)
}

func TestParseGenesisOutput_TopLevelArrayFails(t *testing.T) {
	_, err := parseGenesisOutput(`[{"Timestamp":1598306400}]`)
	assert.Error(t, err)
}

func TestParseGenesisOutput_NoBlocksFails(t *testing.T) {
	_, err := parseGenesisOutput(`{"Blocks":[]}`)
	assert.Error(t, err)
}

func TestParseCurrentEpochOutput_RealShapeIsTopLevelArray(t *testing.T) {
	epoch, err := parseCurrentEpochOutput(`[{"Epoch":123456,"Cids":[]}]`)
	require.NoError(t, err)
	assert.Equal(t, int64(123456), epoch)
}

func TestParseCurrentEpochOutput_NoEntriesFails(t *testing.T) {
	_, err := parseCurrentEpochOutput(`[]`)
	assert.Error(t, err)
}

func TestMergeIntoSnapshot(t *testing.T) {
	report := map[string]string{
		"Network":      "mainnet",
		"Epoch":        "30000",
		"State-roots":  "900",
		"Messages sets": "12",
		"CAR format":   "v1",
	}
	var s snapshot.Snapshot
	MergeIntoSnapshot(report, &s)
	assert.Equal(t, "mainnet", s.Network)
	assert.Equal(t, int64(30000), s.Epoch)
	assert.Equal(t, int64(900), s.StateRoots)
	assert.Equal(t, int64(12), s.MessagesSets)
	assert.Equal(t, "v1", s.CARFormat)
}
