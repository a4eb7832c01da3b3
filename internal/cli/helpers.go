package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/logging"
	"github.com/filecoin-project/forest-snapshot-pipeline/internal/server"
)

// applyEnvFlag copies a flag's value into its backing environment
// variable when the flag was explicitly set on the command line, so
// that internal/config's env-only loaders pick it up. Flags are a
// development convenience layered on top of the environment, not a
// replacement for it.
func applyEnvFlag(cmd *cli.Command, flagName, envName string) {
	if cmd.IsSet(flagName) {
		_ = os.Setenv(envName, fmt.Sprint(cmd.Value(flagName)))
	}
}

// bootServer installs the structured logger, builds the health/metrics
// HTTP server bound to port, and starts it in the background. It
// returns the server (so callers can mark it ready) and its metrics
// registry.
func bootServer(ctx context.Context, worker string, port int) (*server.Server, *prometheus.Registry) {
	logging.SetDefaultStructuredLogger(worker, version)

	reg := prometheus.NewRegistry()
	cfg := server.NewConfig(worker, version, port)
	srv := server.New(cfg, reg)

	go func() {
		if err := srv.Start(ctx); err != nil {
			slog.Error("health/metrics server exited", "worker", worker, "error", err)
		}
	}()

	return srv, reg
}

func wrapFatal(worker string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", worker, err)
}
