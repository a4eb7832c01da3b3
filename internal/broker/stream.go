package broker

// Stream names the logical message streams declared on the broker. Each
// stream gets a fanout exchange, a durable FIFO main queue, a
// length-capped head queue for cursor recovery, and a dead-letter
// exchange/queue pair (§4.1 of SPEC_FULL.md).
type Stream string

const (
	StreamCompute         Stream = "compute"
	StreamSnapshot        Stream = "snapshot"
	StreamSnapshotLatest  Stream = "snapshot-latest"
	StreamSnapshotDiff    Stream = "snapshot-diff"
	StreamUpload          Stream = "upload"
	StreamUploadFailed    Stream = "upload-failed"
	StreamValidate        Stream = "validate"
	StreamValidateFailed  Stream = "validate-failed"
)

// AllStreams lists every stream any worker might declare on startup.
// Workers only need to call Setup with the subset they actually use, but
// declaration is idempotent, so passing AllStreams is always safe.
var AllStreams = []Stream{
	StreamCompute,
	StreamSnapshot,
	StreamSnapshotLatest,
	StreamSnapshotDiff,
	StreamUpload,
	StreamUploadFailed,
	StreamValidate,
	StreamValidateFailed,
}

// headQueueName returns the name of a stream's length-capped cursor queue.
func headQueueName(s Stream) string {
	return string(s) + "-head"
}

// dlxExchangeName returns the name of a stream's dead-letter exchange.
func dlxExchangeName(s Stream) string {
	return string(s) + ".dlx"
}

// dlqQueueName returns the name of a stream's dead-letter queue.
func dlqQueueName(s Stream) string {
	return string(s) + ".dlq"
}
