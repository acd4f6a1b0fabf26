package gossip

import (
	"context"

	"github.com/realmesh/go-realmesh/common/types"
)

//go:generate mockgen -typed -package=mocks -destination=./mocks/mocks.go -source=./interface.go

// Engine is the CRDT document engine the protocol feeds and drains. Change
// blobs and sync bytes are opaque to the protocol; head sets are compared
// only for membership, never interpreted.
type Engine interface {
	// ApplyChanges merges a change blob received from the mesh.
	ApplyChanges(ctx context.Context, changes []byte) error
	// Heads returns the engine's current head set.
	Heads(ctx context.Context) ([]types.ChangeHash, error)
	// ChangesSince extracts a change blob covering everything not reachable
	// from the given heads. An empty blob means there is nothing to send.
	ChangesSince(ctx context.Context, heads []types.ChangeHash) ([]byte, error)
	// ReceiveSyncMessage feeds engine-level sync protocol bytes.
	ReceiveSyncMessage(ctx context.Context, data []byte) error
}

// Publisher broadcasts a protocol message to the realm topic. The realm layer
// implements it by signing, encrypting and publishing on the derived topic.
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}
