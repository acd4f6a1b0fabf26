package gossip

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/hash"
)

// ErrUnknownMessage is returned for a message variant the protocol does not
// recognize.
var ErrUnknownMessage = errors.New("gossip: unknown message")

// Config for the per-realm protocol state.
type Config struct {
	// DedupCacheSize bounds the set of remembered change hashes. Entries
	// evicted from the cache may be re-applied by the engine, which is safe
	// (CRDT merges are idempotent) but wasteful, so size it generously.
	DedupCacheSize int `mapstructure:"dedup-cache-size"`
}

// DefaultConfig for Protocol.
func DefaultConfig() Config {
	return Config{DedupCacheSize: 8192}
}

// Protocol is the per-realm-subscription sync state machine. It deduplicates
// inbound changes by content hash, feeds the CRDT engine, and drives catch-up
// for replicas that fell behind. Messages reach Handle already decrypted and
// signature-verified.
//
// Delivery order across the mesh is arbitrary and duplicated delivery is
// expected; the content-hash dedup set and the engine's own causal metadata
// are the only ordering signals used.
type Protocol struct {
	logger    *zap.Logger
	local     types.NodeID
	engine    Engine
	publisher Publisher

	applied *lru.Cache[types.ChangeHash, struct{}]

	mu    sync.Mutex
	heads map[types.ChangeHash]struct{}
}

// New creates the protocol state for one realm subscription.
func New(
	logger *zap.Logger,
	local types.NodeID,
	engine Engine,
	publisher Publisher,
	cfg Config,
) (*Protocol, error) {
	applied, err := lru.New[types.ChangeHash, struct{}](cfg.DedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dedup cache: %w", err)
	}
	return &Protocol{
		logger:    logger,
		local:     local,
		engine:    engine,
		publisher: publisher,
		applied:   applied,
		heads:     map[types.ChangeHash]struct{}{},
	}, nil
}

// Handle processes one verified inbound message. An error means this message
// was dropped; the subscription itself always survives.
func (p *Protocol) Handle(ctx context.Context, from types.NodeID, msg *Message) error {
	messagesReceived.WithLabelValues(msg.Type.String()).Inc()
	switch payload := msg.Payload.(type) {
	case *Changes:
		return p.onChanges(ctx, from, payload)
	case *SyncRequest:
		return p.onSyncRequest(ctx, from, payload)
	case *SyncMessage:
		return p.onSyncMessage(ctx, from, payload)
	case *Heads:
		return p.onHeads(ctx, from, payload)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg.Payload)
	}
}

// LocalChanges applies a locally produced change blob to the engine and
// broadcasts it. The blob goes through the engine first so that the head set
// announced with it already covers the changes; it is then recorded as
// applied so that echoes coming back through the mesh are dropped without
// touching the engine again.
func (p *Protocol) LocalChanges(ctx context.Context, changes []byte) error {
	if len(changes) == 0 {
		return nil
	}
	if err := p.engine.ApplyChanges(ctx, changes); err != nil {
		return fmt.Errorf("apply local changes: %w", err)
	}
	p.applied.Add(hash.Change(changes), struct{}{})
	heads, err := p.refreshHeads(ctx)
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, NewChanges(changes, heads))
}

// AnnounceHeads broadcasts the current head set. Peers that detect missing
// heads answer with a SyncRequest, which is how late joiners catch up.
func (p *Protocol) AnnounceHeads(ctx context.Context) error {
	heads, err := p.refreshHeads(ctx)
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, NewHeads(heads))
}

// Heads returns a snapshot of the locally-known head set.
func (p *Protocol) Heads() []types.ChangeHash {
	p.mu.Lock()
	defer p.mu.Unlock()
	heads := make([]types.ChangeHash, 0, len(p.heads))
	for h := range p.heads {
		heads = append(heads, h)
	}
	return heads
}

func (p *Protocol) onChanges(ctx context.Context, from types.NodeID, payload *Changes) error {
	if len(payload.Changes) == 0 {
		return nil
	}
	// dedup by content hash: the same change blob can arrive over multiple
	// mesh paths under different message identities
	id := hash.Change(payload.Changes)
	if _, seen := p.applied.Get(id); seen {
		changesDeduplicated.Inc()
		p.logger.Debug("duplicate changes dropped",
			zap.Stringer("from", from),
			zap.String("change", id.ShortString()),
		)
		return nil
	}
	if err := p.engine.ApplyChanges(ctx, payload.Changes); err != nil {
		return fmt.Errorf("apply changes from %s: %w", from.ShortString(), err)
	}
	p.applied.Add(id, struct{}{})
	changesApplied.Inc()
	if _, err := p.refreshHeads(ctx); err != nil {
		return err
	}
	p.logger.Debug("changes applied",
		zap.Stringer("from", from),
		zap.String("change", id.ShortString()),
		zap.Int("size", len(payload.Changes)),
	)
	return nil
}

func (p *Protocol) onHeads(ctx context.Context, from types.NodeID, payload *Heads) error {
	ours, err := p.refreshHeads(ctx)
	if err != nil {
		return err
	}
	if !p.missingAny(payload.Heads) {
		return nil
	}
	// the announcer knows heads we do not: ask the mesh for the delta
	catchupRequests.Inc()
	p.logger.Debug("behind announced heads, requesting sync",
		zap.Stringer("from", from),
		zap.Int("local_heads", len(ours)),
		zap.Int("announced_heads", len(payload.Heads)),
	)
	return p.publisher.Publish(ctx, NewSyncRequest(ours))
}

func (p *Protocol) onSyncRequest(ctx context.Context, from types.NodeID, payload *SyncRequest) error {
	delta, err := p.engine.ChangesSince(ctx, payload.Heads)
	if err != nil {
		return fmt.Errorf("extract delta for %s: %w", from.ShortString(), err)
	}
	if len(delta) == 0 {
		return nil
	}
	heads, err := p.refreshHeads(ctx)
	if err != nil {
		return err
	}
	catchupResponses.Inc()
	p.logger.Debug("serving sync request",
		zap.Stringer("from", from),
		zap.Int("size", len(delta)),
	)
	// broadcast rather than target: other lagging peers benefit from the
	// same delta, and the requester needs no addressable identity
	return p.publisher.Publish(ctx, NewChanges(delta, heads))
}

func (p *Protocol) onSyncMessage(ctx context.Context, from types.NodeID, payload *SyncMessage) error {
	if payload.To != nil && *payload.To != p.local {
		return nil
	}
	if err := p.engine.ReceiveSyncMessage(ctx, payload.Message); err != nil {
		return fmt.Errorf("engine sync message from %s: %w", from.ShortString(), err)
	}
	return nil
}

// refreshHeads pulls the authoritative head set from the engine into the
// local cache and returns it.
func (p *Protocol) refreshHeads(ctx context.Context) ([]types.ChangeHash, error) {
	heads, err := p.engine.Heads(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine heads: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heads = make(map[types.ChangeHash]struct{}, len(heads))
	for _, h := range heads {
		p.heads[h] = struct{}{}
	}
	return heads, nil
}

// missingAny reports whether any of the given heads is absent from the
// locally-known head set.
func (p *Protocol) missingAny(heads []types.ChangeHash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range heads {
		if _, ok := p.heads[h]; !ok {
			return true
		}
	}
	return false
}
