package server

import (
	"os"
	"strconv"
	"time"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/defaults"
)

// Config configures the per-worker health/metrics HTTP server.
type Config struct {
	Name    string
	Version string
	Port    int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewConfig builds a Config for name/version, reading METRICS_PORT from the
// environment and falling back to defaultPort.
func NewConfig(name, version string, defaultPort int) Config {
	port := defaultPort
	if raw := os.Getenv("METRICS_PORT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			port = parsed
		}
	}

	return Config{
		Name:            name,
		Version:         version,
		Port:            port,
		ReadTimeout:     defaults.ServerReadTimeout,
		WriteTimeout:    defaults.ServerWriteTimeout,
		IdleTimeout:     defaults.ServerIdleTimeout,
		ShutdownTimeout: defaults.ServerShutdownTimeout,
	}
}
