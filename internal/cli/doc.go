// Package cli implements the command-line interface for the snapshot
// pipeline's four worker roles.
//
// # Overview
//
// Each worker role (compute, build, upload, validate) is a long-running
// process that loops until its context is canceled. The CLI's job is
// limited to: parse flags/environment into a typed config, install the
// structured logger, and hand off to the worker's Run function.
//
// # Commands
//
//	forestpipe compute
//	forestpipe build
//	forestpipe upload
//	forestpipe validate
//
// # Environment Variables
//
// See internal/config for the full list; every flag below can also be
// set via its environment variable, which is how these binaries are
// actually configured in production (flags exist mainly for local runs).
package cli
