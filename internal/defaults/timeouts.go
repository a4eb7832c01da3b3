// Package defaults centralizes the timeout and interval constants shared
// across the pipeline's workers, grouped by concern.
package defaults

import "time"

// Compute worker timeouts.
const (
	// ComputeBatchSleep is the pause between successfully processed batches.
	ComputeBatchSleep = 10 * time.Second
	// ComputeFailureBackoff is the sleep after a fatal per-epoch failure
	// within a batch, before the outer loop re-queries the chain head.
	ComputeFailureBackoff = 10 * time.Minute
)

// Build worker timeouts.
const (
	// BuildDelayDefault is the default sleep between latest-mode iterations.
	BuildDelayDefault = 20 * time.Minute
	// BuildToolBackoff is the sleep after the chain tool reports its own
	// re-entrancy lock, or after a failed historic-mode pass, before
	// retrying.
	BuildToolBackoff = 10 * time.Minute
	// BuildIdleSleep is the sleep when a historic-mode pass advances
	// neither the lite nor the diff cursor.
	BuildIdleSleep = 24 * time.Hour
	// BuildComputeWaitPoll is the interval at which Build polls the
	// compute cursor while waiting for computation to catch up.
	BuildComputeWaitPoll = 10 * time.Minute
	// BuildF3ReadyTimeout bounds waiting for F3 finality data to be
	// available before exporting a latest-v2 (F3-aware) snapshot.
	BuildF3ReadyTimeout = 10 * time.Minute
	// BuildF3ReadyPoll is the interval at which Build polls F3 status.
	BuildF3ReadyPoll = 15 * time.Second
)

// Upload worker timeouts.
const (
	// UploadTimeout bounds a single message's upload task.
	UploadTimeout = 2400 * time.Second
	// UploadPollInterval is the sleep after a round-robin pass over
	// snapshot, snapshot-diff and snapshot-latest finds nothing to upload.
	UploadPollInterval = 5 * time.Second
)

// Validate worker timeouts.
const (
	// ValidateTimeout bounds a single message's end-to-end validation.
	ValidateTimeout = 3600 * time.Second
	// ValidateRPCReadyTimeout bounds waiting for the secondary daemon's
	// RPC endpoint to come up.
	ValidateRPCReadyTimeout = 10 * time.Minute
	// ValidateSyncWaitTimeout bounds waiting for the secondary daemon to
	// finish syncing before it can be queried.
	ValidateSyncWaitTimeout = 60 * time.Minute
	// ValidatePollInterval is the sleep after the upload queue is found
	// empty.
	ValidatePollInterval = 10 * time.Minute
)

// Object-store client timeouts, mirroring the upload procedure's network
// posture (§4.4/§5 of SPEC_FULL.md).
const (
	// ObjectStoreConnectTimeout bounds establishing the TCP/TLS connection.
	ObjectStoreConnectTimeout = 60 * time.Second
	// ObjectStoreReadTimeout bounds a single HTTP response read.
	ObjectStoreReadTimeout = 300 * time.Second
	// ObjectStoreMultipartChunkSize is both the multipart threshold and
	// the per-part chunk size for the main snapshot blob.
	ObjectStoreMultipartChunkSize = 64 << 20 // 64 MiB
	// ObjectStoreMaxUploadConcurrency bounds parallel multipart parts.
	ObjectStoreMaxUploadConcurrency = 10
	// ObjectStoreMaxRetryAttempts bounds adaptive-mode retries.
	ObjectStoreMaxRetryAttempts = 10
	// Sha256ChunkSize is the read chunk size used while hashing a blob.
	Sha256ChunkSize = 10 << 20 // 10 MiB
)

// HTTP/metrics server timeouts.
const (
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 15 * time.Second
	ServerIdleTimeout     = 60 * time.Second
	ServerShutdownTimeout = 10 * time.Second
)

// CLI / startup timeouts.
const (
	// StartupBrokerDialTimeout bounds the initial broker connection
	// attempt made when a worker boots.
	StartupBrokerDialTimeout = 30 * time.Second
)
