// Package peers keeps the registry of known peers: where they were last
// reachable, how they were discovered, which realms they share with us and
// how their reconnection backoff stands. The registry records facts, it never
// performs network I/O itself.
package peers

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/realmesh/go-realmesh/common/types"
)

// Source records how a peer became known.
type Source uint8

const (
	// SourceRealm marks peers discovered through realm gossip.
	SourceRealm Source = iota
	// SourceInvite marks bootstrap peers adopted from an invite ticket.
	SourceInvite
	// SourceManual marks peers added explicitly by the operator.
	SourceManual
)

// String returns the string representation of a source.
func (s Source) String() string {
	switch s {
	case SourceRealm:
		return "realm"
	case SourceInvite:
		return "invite"
	case SourceManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Status is the last known connection state of a peer.
type Status uint8

const (
	// Online means a live link to the peer exists.
	Online Status = iota
	// Offline means the last link is gone and no retry is scheduled yet.
	Offline
	// Reconnecting means the reconnection driver is working on the peer.
	Reconnecting
)

// String returns the string representation of a status.
func (s Status) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Info is a point-in-time snapshot of one registry entry.
type Info struct {
	ID             types.NodeID
	Addresses      []ma.Multiaddr
	Source         Source
	Status         Status
	SharedRealms   []types.RealmID
	BackoffAttempt uint32
	NextRetry      time.Time
}

// MarshalLogObject implements logging encoder for Info.
func (i *Info) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("id", i.ID.ShortString())
	encoder.AddString("source", i.Source.String())
	encoder.AddString("status", i.Status.String())
	encoder.AddInt("addresses", len(i.Addresses))
	encoder.AddUint32("attempt", i.BackoffAttempt)
	return nil
}

type entry struct {
	id           types.NodeID
	addresses    map[string]ma.Multiaddr
	source       Source
	status       Status
	sharedRealms map[types.RealmID]struct{}
	attempt      uint32
	nextRetry    time.Time
}

func (e *entry) snapshot() Info {
	info := Info{
		ID:             e.id,
		Addresses:      make([]ma.Multiaddr, 0, len(e.addresses)),
		Source:         e.source,
		Status:         e.status,
		SharedRealms:   make([]types.RealmID, 0, len(e.sharedRealms)),
		BackoffAttempt: e.attempt,
		NextRetry:      e.nextRetry,
	}
	for _, addr := range e.addresses {
		info.Addresses = append(info.Addresses, addr)
	}
	for realm := range e.sharedRealms {
		info.SharedRealms = append(info.SharedRealms, realm)
	}
	return info
}

// Opt configures a Registry.
type Opt func(*Registry)

// WithClock replaces the wall clock, for testing.
func WithClock(clock clockwork.Clock) Opt {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithRetryPolicy sets the function that computes the wait before the next
// reconnection attempt from the attempt counter. Without a policy peers are
// due for retry immediately.
func WithRetryPolicy(policy func(attempt uint32) time.Duration) Opt {
	return func(r *Registry) {
		r.retryPolicy = policy
	}
}

// Registry is the shared peer table. One instance is shared by reference
// across all realm subscriptions and the reconnection driver; all mutations
// are serialized by the registry itself and none of them block on I/O.
type Registry struct {
	logger      *zap.Logger
	clock       clockwork.Clock
	retryPolicy func(attempt uint32) time.Duration

	mu    sync.Mutex
	peers map[types.NodeID]*entry
}

// New creates an empty registry.
func New(logger *zap.Logger, opts ...Opt) *Registry {
	r := &Registry{
		logger: logger,
		clock:  clockwork.NewRealClock(),
		peers:  map[types.NodeID]*entry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert merges info into the registry. Addresses and shared realms are
// unioned with what is already known; the discovery source of an existing
// entry is never overwritten. Entries live until Remove is called, they
// never expire implicitly.
func (r *Registry) Upsert(info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.peers[info.ID]
	if !exists {
		e = &entry{
			id:           info.ID,
			addresses:    map[string]ma.Multiaddr{},
			source:       info.Source,
			status:       info.Status,
			sharedRealms: map[types.RealmID]struct{}{},
		}
		r.peers[info.ID] = e
		trackedPeers.Inc()
		r.logger.Debug("peer discovered",
			zap.String("id", info.ID.ShortString()),
			zap.Stringer("source", info.Source),
		)
	}
	for _, addr := range info.Addresses {
		e.addresses[addr.String()] = addr
	}
	for _, realm := range info.SharedRealms {
		e.sharedRealms[realm] = struct{}{}
	}
}

// Get returns a snapshot of the entry for the given peer.
func (r *Registry) Get(id types.NodeID) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok {
		return Info{}, false
	}
	return e.snapshot(), true
}

// All returns snapshots of every entry.
func (r *Registry) All() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]Info, 0, len(r.peers))
	for _, e := range r.peers {
		infos = append(infos, e.snapshot())
	}
	return infos
}

// SetStatus updates the connection status of a peer.
func (r *Registry) SetStatus(id types.NodeID, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok {
		return
	}
	e.status = status
}

// RecordAttempt notes a failed connection attempt: the backoff counter is
// incremented and the next retry time stamped from the retry policy. It
// returns the attempt number just recorded.
func (r *Registry) RecordAttempt(id types.NodeID) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok {
		return 0
	}
	var wait time.Duration
	if r.retryPolicy != nil {
		wait = r.retryPolicy(e.attempt)
	}
	e.attempt++
	e.status = Reconnecting
	e.nextRetry = r.clock.Now().Add(wait)
	return e.attempt
}

// RecordSuccess resets the backoff state after a connection was established.
func (r *Registry) RecordSuccess(id types.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[id]
	if !ok {
		return
	}
	e.attempt = 0
	e.nextRetry = time.Time{}
	e.status = Online
}

// Due returns snapshots of the peers that are not online and whose retry
// time has passed.
func (r *Registry) Due(now time.Time) []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Info
	for _, e := range r.peers {
		if e.status == Online {
			continue
		}
		if e.nextRetry.After(now) {
			continue
		}
		due = append(due, e.snapshot())
	}
	return due
}

// Remove deletes a peer entry. This is the only way an entry disappears.
func (r *Registry) Remove(id types.NodeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[id]; ok {
		delete(r.peers, id)
		trackedPeers.Dec()
	}
}
