// Package invite mints and verifies the signed tickets that grant realm
// membership. A ticket carries everything a joining node needs: the realm
// identity and key, the derived topic, and bootstrap peers to dial. Tickets
// travel out of band, so everything in them is covered by the creator's
// signature.
package invite

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap/zapcore"

	"github.com/realmesh/go-realmesh/codec"
	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/peers"
	"github.com/realmesh/go-realmesh/signing"
)

const ticketVersion = 0

const (
	maxBootstrapPeers = 16
	maxRealmNameLen   = 256
)

var (
	// ErrUnsupportedVersion is returned for tickets minted by a newer node.
	ErrUnsupportedVersion = errors.New("invite: unsupported ticket version")
	// ErrSignatureInvalid is returned when the creator signature does not
	// cover the ticket contents.
	ErrSignatureInvalid = errors.New("invite: invalid creator signature")
	// ErrNotYetValid is returned when the ticket creation time is in the
	// future.
	ErrNotYetValid = errors.New("invite: ticket not yet valid")
	// ErrExpired is returned when the ticket expiry has passed.
	ErrExpired = errors.New("invite: ticket expired")
	// ErrUsageExceeded is returned when the ticket use budget is exhausted.
	ErrUsageExceeded = errors.New("invite: ticket usage exceeded")
	// ErrNoBootstrapPeers is returned for tickets without a single peer to
	// dial.
	ErrNoBootstrapPeers = errors.New("invite: no bootstrap peers")
	// ErrMalformedTicket is returned when a ticket string fails to decode.
	ErrMalformedTicket = errors.New("invite: malformed ticket")
)

// Peer is one bootstrap peer inside a ticket. Addresses are multiaddr
// strings; they are validated when the ticket is used, not when it is
// decoded, so one bad address does not void the whole ticket.
type Peer struct {
	ID        types.NodeID
	Addresses []string `scale:"max=8"`
}

// Info converts the bootstrap peer into a registry entry. Addresses that do
// not parse are skipped.
func (p *Peer) Info() peers.Info {
	info := peers.Info{
		ID:     p.ID,
		Source: peers.SourceInvite,
		Status: peers.Offline,
	}
	for _, raw := range p.Addresses {
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			continue
		}
		info.Addresses = append(info.Addresses, addr)
	}
	return info
}

// Ticket is a signed realm invitation.
//
// CreatedAt and ExpiresAt are unix milliseconds. ExpiresAt zero means the
// ticket never expires; MaxUses zero means unlimited uses. The use counter
// itself is node-local state, the ticket only carries the budget.
type Ticket struct {
	Version   uint8
	InviteID  uuid.UUID
	Realm     types.RealmID
	Topic     types.TopicID
	Key       types.RealmKey
	Bootstrap []Peer `scale:"max=16"`
	RealmName string `scale:"max=256"`
	CreatedAt uint64
	ExpiresAt uint64
	MaxUses   uint32
	Creator   types.NodeID
	Signature types.EdSignature
}

// Params describes the ticket to mint.
type Params struct {
	Realm     types.RealmID
	Key       types.RealmKey
	RealmName string
	Bootstrap []Peer
	// ExpiresIn bounds the ticket lifetime. Zero means no expiry.
	ExpiresIn time.Duration
	// MaxUses bounds how many joins the ticket admits. Zero means unlimited.
	MaxUses uint32
}

// Create mints a ticket for the given realm, signed by the local node. The
// topic is derived from the realm identity so the joiner never has to.
func Create(signer *signing.EdSigner, now time.Time, params Params) (*Ticket, error) {
	if len(params.Bootstrap) == 0 {
		return nil, ErrNoBootstrapPeers
	}
	if len(params.Bootstrap) > maxBootstrapPeers {
		return nil, fmt.Errorf("invite: too many bootstrap peers: %d", len(params.Bootstrap))
	}
	if len(params.RealmName) > maxRealmNameLen {
		return nil, fmt.Errorf("invite: realm name too long: %d bytes", len(params.RealmName))
	}
	t := &Ticket{
		Version:   ticketVersion,
		InviteID:  uuid.New(),
		Realm:     params.Realm,
		Topic:     params.Realm.TopicID(),
		Key:       params.Key,
		Bootstrap: params.Bootstrap,
		RealmName: params.RealmName,
		CreatedAt: uint64(now.UnixMilli()),
		MaxUses:   params.MaxUses,
		Creator:   signer.NodeID(),
	}
	if params.ExpiresIn > 0 {
		t.ExpiresAt = uint64(now.Add(params.ExpiresIn).UnixMilli())
	}
	signed, err := t.signedBytes()
	if err != nil {
		return nil, fmt.Errorf("encode ticket for signing: %w", err)
	}
	t.Signature = signer.Sign(signing.INVITE, signed)
	return t, nil
}

// Verify checks a ticket against the current time and the local use counter.
// The signature is checked before any time or usage field is interpreted:
// those fields are attacker-controlled until authenticity is established.
func (t *Ticket) Verify(verifier *signing.EdVerifier, now time.Time, uses uint32) error {
	if t.Version != ticketVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, t.Version)
	}
	signed, err := t.signedBytes()
	if err != nil {
		return fmt.Errorf("encode ticket for verification: %w", err)
	}
	if !verifier.Verify(signing.INVITE, t.Creator, signed, t.Signature) {
		return ErrSignatureInvalid
	}
	nowMs := uint64(now.UnixMilli())
	if t.CreatedAt > nowMs {
		return ErrNotYetValid
	}
	if t.ExpiresAt != 0 && nowMs > t.ExpiresAt {
		return ErrExpired
	}
	if t.MaxUses != 0 && uses >= t.MaxUses {
		return ErrUsageExceeded
	}
	if len(t.Bootstrap) == 0 {
		return ErrNoBootstrapPeers
	}
	return nil
}

// signedBytes encodes every field the creator signature covers, which is the
// whole ticket minus the signature itself.
func (t *Ticket) signedBytes() ([]byte, error) {
	unsigned := *t
	unsigned.Signature = types.EdSignature{}
	return codec.Encode(&unsigned)
}

// Encode serializes the ticket to a base64url string for out-of-band
// exchange.
func (t *Ticket) Encode() (string, error) {
	raw, err := codec.Encode(t)
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses a ticket string. Decoding establishes shape only; call
// Verify before trusting any field.
func Decode(s string) (*Ticket, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}
	var t Ticket
	if err := codec.Decode(raw, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}
	return &t, nil
}

// MarshalLogObject implements logging encoder for Ticket. The realm key is
// deliberately absent.
func (t *Ticket) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("invite", t.InviteID.String())
	encoder.AddString("realm", t.Realm.ShortString())
	encoder.AddString("name", t.RealmName)
	encoder.AddString("creator", t.Creator.ShortString())
	encoder.AddInt("bootstrap", len(t.Bootstrap))
	encoder.AddUint32("max_uses", t.MaxUses)
	return nil
}
