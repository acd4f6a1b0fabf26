// Package store persists the node state that must survive a restart: which
// realms the node belongs to (with their keys and topics), how often each
// invite has been used, and the peer table. The CRDT change log is the
// engine's business and never passes through here.
package store

import (
	"github.com/google/uuid"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/peers"
)

// RealmRecord is the durable binding of a realm: identity, display name,
// symmetric key and derived topic.
type RealmRecord struct {
	ID    types.RealmID
	Name  string `scale:"max=256"`
	Key   types.RealmKey
	Topic types.TopicID
}

// PeerRecord is the durable form of a registry entry. Connection status and
// backoff state are runtime-only; a loaded peer always starts offline with a
// clean backoff.
type PeerRecord struct {
	ID           types.NodeID
	Addresses    []string `scale:"max=16"`
	Source       uint8
	SharedRealms []types.RealmID `scale:"max=64"`
}

// PeerRecordFromInfo converts a registry snapshot into its durable form.
func PeerRecordFromInfo(info peers.Info) PeerRecord {
	rec := PeerRecord{
		ID:           info.ID,
		Source:       uint8(info.Source),
		SharedRealms: info.SharedRealms,
	}
	for _, addr := range info.Addresses {
		rec.Addresses = append(rec.Addresses, addr.String())
	}
	return rec
}

// Info converts a durable peer record back into a registry entry. Addresses
// that no longer parse are skipped.
func (r *PeerRecord) Info() peers.Info {
	info := peers.Info{
		ID:           r.ID,
		Source:       peers.Source(r.Source),
		Status:       peers.Offline,
		SharedRealms: r.SharedRealms,
	}
	for _, raw := range r.Addresses {
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			continue
		}
		info.Addresses = append(info.Addresses, addr)
	}
	return info
}

// Store is the persistence surface of the node.
type Store interface {
	// SaveRealm inserts or replaces a realm record.
	SaveRealm(rec RealmRecord) error
	// Realm returns the record for a realm, if present.
	Realm(id types.RealmID) (RealmRecord, bool, error)
	// Realms returns every stored realm record.
	Realms() ([]RealmRecord, error)
	// DeleteRealm removes a realm record.
	DeleteRealm(id types.RealmID) error

	// InviteUses returns how many joins the given invite has admitted here.
	InviteUses(id uuid.UUID) (uint32, error)
	// BumpInviteUses increments the use counter and returns the new value.
	BumpInviteUses(id uuid.UUID) (uint32, error)

	// SavePeers replaces the durable peer table with the given snapshot.
	SavePeers(recs []PeerRecord) error
	// Peers returns the durable peer table.
	Peers() ([]PeerRecord, error)
}
