// Package hash provides the blake3 content hashing used throughout the
// synchronization protocol.
package hash

import (
	"github.com/zeebo/blake3"

	"github.com/realmesh/go-realmesh/common/types"
)

const (
	// Size of a hash in bytes.
	Size = 32
)

// New returns a new unkeyed blake3 hasher.
func New() *blake3.Hasher {
	return blake3.New()
}

// Sum computes the blake3 hash of all chunks concatenated.
func Sum(chunks ...[]byte) (sum [Size]byte) {
	hasher := GetHasher()
	defer func() {
		hasher.Reset()
		PutHasher(hasher)
	}()
	for _, chunk := range chunks {
		hasher.Write(chunk)
	}
	hasher.Digest().Read(sum[:])
	return sum
}

// Change computes the content hash identifying a CRDT change blob.
// Identical bytes always map to the same hash regardless of the path the
// change took through the mesh, which is what makes it usable as a
// deduplication key.
func Change(data []byte) types.ChangeHash {
	return types.ChangeHash(Sum(data))
}
