package chaintool

import (
	"context"
	"time"

	cnserrors "github.com/filecoin-project/forest-snapshot-pipeline/internal/errors"
)

// WaitForF3Ready polls `forest-cli f3 status` until it exits zero or
// timeout elapses, grounded on the original implementation's
// wait_for_f3 helper (called before building a latest-v2, F3-aware
// snapshot). The exact readiness probe is not externally documented in
// the source pack; exit code zero on the status subcommand is the most
// direct signal the chain tool itself exposes.
func WaitForF3Ready(ctx context.Context, r *Runner, env []string, timeout time.Duration, poll time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		res, err := r.Run(ctx, "forest-cli", []string{"f3", "status"}, env)
		if err == nil && res.ExitCode == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			return cnserrors.New(cnserrors.ErrCodeTimeout, "timed out waiting for F3 readiness")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}
