// Package logging provides structured logging utilities for the snapshot
// pipeline's workers.
//
// # Overview
//
// This package wraps the standard library slog package with pipeline-wide
// defaults and conventions for consistent logging across all four workers.
// It supports environment-based log level configuration, worker/version
// context injection, and automatic source location tracking for debug logs.
//
// # Log Levels
//
// Supported log levels (case-insensitive): DEBUG, INFO (default), WARN or
// WARNING, ERROR.
//
// # Output Format
//
// All logs are written to stderr in JSON format:
//
//	{"time":"2026-01-15T10:30:00.123Z","level":"INFO","msg":"worker started","worker":"build","version":"v1.0.0"}
//
// When the level is DEBUG, every record additionally includes a "source"
// field with file:line.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel is the environment variable that controls logging verbosity
// across every worker. If unset, INFO is used.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel parses a log level string, case-insensitively. Unrecognized
// values fall back to slog.LevelInfo.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromEnv reads EnvLogLevel and parses it, defaulting to INFO.
func LevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv(EnvLogLevel))
}

// NewStructuredLogger builds a JSON slog.Logger writing to stderr, with
// worker and version attached to every record. Source location is
// included in every record when level is debug, and in none otherwise.
func NewStructuredLogger(worker, version string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	return slog.New(handler).With(
		slog.String("worker", worker),
		slog.String("version", version),
	)
}

// SetDefaultStructuredLoggerWithLevel installs a process-wide structured
// logger at the given level string (parsed via ParseLevel).
func SetDefaultStructuredLoggerWithLevel(worker, version, level string) {
	slog.SetDefault(NewStructuredLogger(worker, version, ParseLevel(level)))
}

// SetDefaultStructuredLogger installs a process-wide structured logger,
// reading its level from LOG_LEVEL (defaulting to INFO).
func SetDefaultStructuredLogger(worker, version string) {
	slog.SetDefault(NewStructuredLogger(worker, version, LevelFromEnv()))
}
