// Package checksum provides the content hashing primitives shared by the
// producer and consumer pipelines. SHA-256 is the integrity contract: every
// hash that crosses the network boundary (manifest entries, asset digests,
// post-apply verification) is a lowercase hex SHA-256 digest. xxhash64 is
// used only for derived local names where a cryptographic digest buys
// nothing.
package checksum

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// defaultBufferSize is the read buffer used for streaming hashes
const defaultBufferSize = 64 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, defaultBufferSize)
		return &buf
	},
}

// New returns the hash.Hash used for all content hashing
func New() hash.Hash {
	return sha256.New()
}

// Sum returns the content hash of a byte slice as lowercase hex
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return fmt.Sprintf("%x", digest)
}

// SumReader computes the content hash of everything read from r.
// The context is checked between reads so large files can be cancelled.
func SumReader(ctx context.Context, r io.Reader) (string, error) {
	hasher := sha256.New()

	bufPtr := bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer bufferPool.Put(bufPtr)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := r.Read(buffer)
		if n > 0 {
			hasher.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read for hashing: %w", err)
		}
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// SumFile computes the content hash of a file using streaming reads
func SumFile(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	sum, err := SumReader(ctx, file)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return sum, nil
}

// Key derives a short, filesystem-safe hex key from an arbitrary string.
// Used for staging temp-file names where the input (an asset name or
// relative path) may contain characters the filesystem dislikes. Not an
// integrity hash.
func Key(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
