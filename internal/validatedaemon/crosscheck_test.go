package validatedaemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncComplete(t *testing.T) {
	assert.True(t, syncComplete(syncState{}))
	assert.True(t, syncComplete(syncState{ActiveSyncs: []struct {
		Stage int `json:"Stage"`
	}{{Stage: syncStageComplete}}}))
	assert.False(t, syncComplete(syncState{ActiveSyncs: []struct {
		Stage int `json:"Stage"`
	}{{Stage: syncStageComplete}, {Stage: 2}}}))
}

func rpcServer(t *testing.T, result any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rpcResponse{}
		body, err := json.Marshal(result)
		require.NoError(t, err)
		resp.Result = body
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func rpcEmptyServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(rpcResponse{Result: json.RawMessage("null")}))
	}))
}

func TestLookupTestTipsetCID_UsesPrimaryWhenPresent(t *testing.T) {
	primary := rpcServer(t, tipSet{Cids: []struct {
		CID string `json:"/"`
	}{{CID: "bafyprimary"}}})
	defer primary.Close()
	backup := rpcEmptyServer(t)
	defer backup.Close()

	cid, err := lookupTestTipsetCID(context.Background(), primary.URL, backup.URL, 100)
	require.NoError(t, err)
	assert.Equal(t, "bafyprimary", cid)
}

func TestLookupTestTipsetCID_FallsBackToBackup(t *testing.T) {
	primary := rpcEmptyServer(t)
	defer primary.Close()
	backup := rpcServer(t, tipSet{Cids: []struct {
		CID string `json:"/"`
	}{{CID: "bafybackup"}}})
	defer backup.Close()

	cid, err := lookupTestTipsetCID(context.Background(), primary.URL, backup.URL, 100)
	require.NoError(t, err)
	assert.Equal(t, "bafybackup", cid)
}

func TestLookupTestTipsetCID_BothEmptyFails(t *testing.T) {
	primary := rpcEmptyServer(t)
	defer primary.Close()
	backup := rpcEmptyServer(t)
	defer backup.Close()

	_, err := lookupTestTipsetCID(context.Background(), primary.URL, backup.URL, 100)
	assert.Error(t, err)
}
