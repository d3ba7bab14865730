// Package digest computes content digests of device configurations.
//
// Two configurations are defined as equal iff their digests are equal. The
// digest is BLAKE3-256; it is stable across runs and machines, so digests
// may be persisted and compared later.
package digest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Size is the digest length in bytes.
const Size = 32

// fileChunkSize is the block size for streamed file hashing, so arbitrarily
// large master files never need full in-memory buffering.
const fileChunkSize = 1 << 20

// Sum returns the hex digest of data.
func Sum(data []byte) string {
	sum := blake3.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// SumFile returns the hex digest of the file at path, streamed in
// fixed-size blocks.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest: open %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, fileChunkSize)

	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("digest: hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Match reports whether two hex digests denote identical content.
// An empty digest never matches anything, including another empty digest.
func Match(a, b string) bool {
	return a != "" && a == b
}
