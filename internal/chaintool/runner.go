// Package chaintool models every invocation of the external chain-node
// CLI as a value: an argv/env/timeout triple in, an {ExitCode,
// CapturedOutput} result out, converted by the caller into a
// {Ok(path) | RetryLater | Failed(reason)} outcome. This replaces the
// source's ad-hoc subprocess streaming plus control-flow-by-exception
// (§9 "Design Notes" of SPEC_FULL.md) with a single, testable seam.
package chaintool

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ReentrancySentinel is the substring the chain tool prints to stdout
// when its own process-wide export lock is already held by another
// invocation (§4.3/§5/§9 of SPEC_FULL.md).
const ReentrancySentinel = "Another chain export job is still in progress"

// Result is the outcome of running a single chain-tool subprocess.
type Result struct {
	ExitCode int
	Output   string
}

// IsReentrant reports whether Output contains the chain tool's
// re-entrancy sentinel, regardless of ExitCode.
func (r Result) IsReentrant() bool {
	return strings.Contains(r.Output, ReentrancySentinel)
}

// Runner executes chain-tool subprocesses, serializing them through a
// one-slot semaphore so at most one is in flight per worker process —
// consistent with §5's "workers hold at most one in-flight message per
// iteration". Spawns also pass through an (unbounded) rate limiter.
type Runner struct {
	limiter *rate.Limiter
	slot    chan struct{}
}

// NewRunner returns a Runner that admits at most one subprocess at a
// time, per worker.
func NewRunner() *Runner {
	return &Runner{limiter: rate.NewLimiter(rate.Inf, 1), slot: make(chan struct{}, 1)}
}

// Run executes name with args, streaming its combined stdout+stderr into
// the returned Result.Output (line-buffering is left to the OS pipe; the
// caller only needs the final captured text to scan for sentinels and to
// log on failure). env is appended to the current process environment.
func (r *Runner) Run(ctx context.Context, name string, args []string, env []string) (Result, error) {
	select {
	case r.slot <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-r.slot }()

	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), env...)
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{ExitCode: -1, Output: buf.String()}, runErr
		}
	}

	return Result{ExitCode: exitCode, Output: buf.String()}, nil
}

// RunWithTimeout is Run bounded by an additional wall-clock deadline, for
// invocations that must not hang forever even when the caller's own
// context has no deadline.
func (r *Runner) RunWithTimeout(ctx context.Context, timeout time.Duration, name string, args []string, env []string) (Result, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return r.Run(tctx, name, args, env)
}
