package types

import (
	"encoding/hex"

	"github.com/spacemeshos/go-scale"
)

const (
	// NodeIDSize in bytes.
	NodeIDSize = 32
)

// NodeID is the ed25519 public key identifying a node on the mesh. It travels
// inside every signed message so that receivers can verify authenticity
// without any prior key exchange.
type NodeID [NodeIDSize]byte

// BytesToNodeID is a helper to copy a buffer into a NodeID.
func BytesToNodeID(buf []byte) (id NodeID) {
	copy(id[:], buf)
	return id
}

// String returns a string representation of the NodeID, for logging purposes.
// It implements the Stringer interface.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the byte representation of the Edwards public key.
func (id NodeID) Bytes() []byte {
	return id[:]
}

// ShortString returns the first few characters of the ID, for logging purposes.
func (id NodeID) ShortString() string {
	return Shorten(id.String(), 10)
}

// EmptyNodeID is a canonical empty NodeID.
var EmptyNodeID NodeID

// EncodeScale implements scale codec interface.
func (id *NodeID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, id[:])
}

// DecodeScale implements scale codec interface.
func (id *NodeID) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, id[:])
}
