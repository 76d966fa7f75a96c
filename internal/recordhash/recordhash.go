// Package recordhash computes the content hash recordsync uses to compare
// local and remote record sets before any payload transfer (spec.md §4.2).
// Kept as a narrow, single-purpose package in the style of the teacher's
// pkg/quickxorhash: one algorithm today, a seam for more tomorrow.
package recordhash

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Size is the digest length, in bytes, produced by New's hash.
const Size = sha256.Size

// New returns a streaming hash.Hash for the default algorithm (SHA-256).
// Exists so call sites that need incremental hashing (rather than a single
// Sum call) don't need to know the concrete algorithm.
func New() hash.Hash {
	return sha256.New()
}

// Sum returns the lowercase hex digest of data using the default algorithm.
// This is what the sync engine calls to hash a canonical serialization.
func Sum(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// Valid reports whether s looks like a digest produced by Sum: lowercase hex
// of the exact expected length.
func Valid(s string) bool {
	if len(s) != Size*2 {
		return false
	}

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}

	return true
}
