package validatedaemon

import (
	"context"

	pipelineerrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

type versionResult struct {
	Version string `json:"Version"`
}

// Version queries the reference daemon's own Filecoin.Version RPC
// method, used to populate the validation record's lotus_version field.
func Version(ctx context.Context, endpoint string) (string, error) {
	var v versionResult
	if err := callRPC(ctx, endpoint, "Filecoin.Version", nil, &v); err != nil {
		return "", pipelineerrors.Wrap(pipelineerrors.ErrCodeToolFailure, "query reference daemon version", err)
	}
	return v.Version, nil
}
