package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/filecoin-project/forest-snapshot-pipeline/internal/defaults"
)

// sha256File hashes path in Sha256ChunkSize-sized reads, matching the
// original implementation's chunked hashing rather than loading the
// whole blob into memory.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, defaults.Sha256ChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
