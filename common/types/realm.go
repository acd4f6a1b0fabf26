package types

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spacemeshos/go-scale"
	"github.com/zeebo/blake3"
)

const (
	// RealmIDSize in bytes.
	RealmIDSize = 32
	// TopicIDSize in bytes.
	TopicIDSize = 32
	// RealmKeySize in bytes.
	RealmKeySize = 32
)

// topicDerivationKey is the fixed keying material that domain-separates topic
// derivation from every other use of blake3 in the protocol. Exactly 32 bytes,
// as required by the keyed hashing mode.
var topicDerivationKey = []byte("realmesh/v0/topic-derivation-key")

// RealmID is the opaque, globally unique identifier of a realm. It is created
// once at realm creation and never changes for the lifetime of the realm.
type RealmID [RealmIDSize]byte

// TopicID is the rendezvous identifier peers subscribe to on the broadcast
// transport. It is derived one-way from the RealmID, so observing a topic on
// the wire reveals nothing about the realm it belongs to.
type TopicID [TopicIDSize]byte

// RealmKey is the symmetric key all gossip traffic of a realm is encrypted
// with. Key rotation is not part of the protocol; the key lives as long as
// the realm does.
type RealmKey [RealmKeySize]byte

// GenerateRealmID creates a new random realm identifier.
func GenerateRealmID() (RealmID, error) {
	var id RealmID
	if _, err := rand.Read(id[:]); err != nil {
		return RealmID{}, fmt.Errorf("generate realm id: %w", err)
	}
	return id, nil
}

// GenerateRealmKey creates a new random symmetric realm key.
func GenerateRealmKey() (RealmKey, error) {
	var key RealmKey
	if _, err := rand.Read(key[:]); err != nil {
		return RealmKey{}, fmt.Errorf("generate realm key: %w", err)
	}
	return key, nil
}

// TopicID derives the broadcast topic for the realm. The derivation is pure
// and deterministic: the same RealmID always maps to the same TopicID, and it
// is not reversible back to the RealmID.
func (r RealmID) TopicID() TopicID {
	h, err := blake3.NewKeyed(topicDerivationKey)
	if err != nil {
		// the key is a compile-time constant of the right size
		panic(err)
	}
	h.Write(r[:])
	var topic TopicID
	h.Digest().Read(topic[:])
	return topic
}

// Bytes returns the byte representation of the realm id.
func (r RealmID) Bytes() []byte { return r[:] }

// String implements the stringer interface.
func (r RealmID) String() string { return hex.EncodeToString(r[:]) }

// ShortString returns a shortened representation, for logging purposes.
func (r RealmID) ShortString() string { return Shorten(r.String(), 10) }

// EmptyRealmID is a canonical empty RealmID.
var EmptyRealmID RealmID

// EncodeScale implements scale codec interface.
func (r *RealmID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, r[:])
}

// DecodeScale implements scale codec interface.
func (r *RealmID) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, r[:])
}

// Bytes returns the byte representation of the topic id.
func (t TopicID) Bytes() []byte { return t[:] }

// String implements the stringer interface. The string form doubles as the
// topic name handed to the broadcast transport.
func (t TopicID) String() string { return hex.EncodeToString(t[:]) }

// ShortString returns a shortened representation, for logging purposes.
func (t TopicID) ShortString() string { return Shorten(t.String(), 10) }

// EncodeScale implements scale codec interface.
func (t *TopicID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, t[:])
}

// DecodeScale implements scale codec interface.
func (t *TopicID) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, t[:])
}

// Bytes returns the byte representation of the key.
func (k RealmKey) Bytes() []byte { return k[:] }

// String implements the stringer interface without exposing key material.
func (k RealmKey) String() string { return "<realm key>" }

// EncodeScale implements scale codec interface.
func (k *RealmKey) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, k[:])
}

// DecodeScale implements scale codec interface.
func (k *RealmKey) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, k[:])
}
