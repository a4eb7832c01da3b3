package validatedaemon

import (
	"context"
	"time"

	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

// CrossCheckConfig names the RPC endpoints involved in the secondary
// validation: the just-started local reference daemon, and the two
// external nodes queried for the test tipset (§4.5 Validation 2 of
// SPEC_FULL.md).
type CrossCheckConfig struct {
	LocalEndpoint    string
	PrimaryRPC       string
	BackupRPC        string
	TestHeightOffset int64
}

type chainHead struct {
	Height int64 `json:"Height"`
}

type tipSet struct {
	Cids []struct {
		CID string `json:"/"`
	} `json:"Cids"`
}

type blockHeader struct {
	Height int64 `json:"Height"`
}

// lotus's api.SyncStageComplete; the daemon has finished ingesting the
// imported snapshot once every active sync reaches this stage.
const syncStageComplete = 5

type syncState struct {
	ActiveSyncs []struct {
		Stage int `json:"Stage"`
	} `json:"ActiveSyncs"`
}

// Run executes the full cross-check against an already-started daemon
// importing the snapshot under test: wait for its RPC, wait for it to
// finish syncing, query its head, look up the test tipset on an external
// node (falling back from primary to backup), then assert the local
// daemon reports the same height for that tipset's block.
func Run(ctx context.Context, cfg CrossCheckConfig, rpcReadyTimeout, syncWaitTimeout time.Duration) error {
	if err := waitForRPCReady(ctx, cfg.LocalEndpoint, rpcReadyTimeout); err != nil {
		return err
	}
	if err := waitForSync(ctx, cfg.LocalEndpoint, syncWaitTimeout); err != nil {
		return err
	}

	var head chainHead
	if err := callRPC(ctx, cfg.LocalEndpoint, "Filecoin.ChainHead", nil, &head); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "query local chain head", err)
	}
	testHeight := head.Height - cfg.TestHeightOffset

	cid, err := lookupTestTipsetCID(ctx, cfg.PrimaryRPC, cfg.BackupRPC, testHeight)
	if err != nil {
		return err
	}

	var blk blockHeader
	if err := callRPC(ctx, cfg.LocalEndpoint, "Filecoin.ChainGetBlock", []any{map[string]string{"/": cid}}, &blk); err != nil {
		return pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "query local chain block", err)
	}
	if blk.Height != testHeight {
		return pipelineerrors.New(pipelineerrors.ErrCodeToolFailure, "cross-check height mismatch")
	}
	return nil
}

// lookupTestTipsetCID queries primary for the tipset at height, falling
// back to backup if primary returns no result (§4.5 step 5).
func lookupTestTipsetCID(ctx context.Context, primary, backup string, height int64) (string, error) {
	var ts tipSet
	if err := callRPC(ctx, primary, "Filecoin.ChainGetTipSetByHeight", []any{height, nil}, &ts); err != nil || len(ts.Cids) == 0 {
		ts = tipSet{}
		if err := callRPC(ctx, backup, "Filecoin.ChainGetTipSetByHeight", []any{height, nil}, &ts); err != nil {
			return "", pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "query tipset from primary and backup RPC", err)
		}
	}
	if len(ts.Cids) == 0 {
		return "", pipelineerrors.New(pipelineerrors.ErrCodeToolFailure, "no tipset returned for test height")
	}
	return ts.Cids[0].CID, nil
}

func waitForRPCReady(ctx context.Context, endpoint string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var head chainHead
		if err := callRPC(ctx, endpoint, "Filecoin.ChainHead", nil, &head); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return pipelineerrors.New(pipelineerrors.ErrCodeTimeout, "timed out waiting for reference daemon RPC")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

func waitForSync(ctx context.Context, endpoint string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var ss syncState
		if err := callRPC(ctx, endpoint, "Filecoin.SyncState", nil, &ss); err == nil && syncComplete(ss) {
			return nil
		}
		if time.Now().After(deadline) {
			return pipelineerrors.New(pipelineerrors.ErrCodeTimeout, "timed out waiting for reference daemon sync")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(30 * time.Second):
		}
	}
}

// syncComplete reports whether every active sync reported by
// Filecoin.SyncState has reached the complete stage.
func syncComplete(ss syncState) bool {
	for _, s := range ss.ActiveSyncs {
		if s.Stage != syncStageComplete {
			return false
		}
	}
	return true
}
