package invite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/peers"
	"github.com/realmesh/go-realmesh/signing"
)

func testParams(t *testing.T) Params {
	t.Helper()
	realm, err := types.GenerateRealmID()
	require.NoError(t, err)
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)
	var peerID types.NodeID
	peerID[0] = 7
	return Params{
		Realm:     realm,
		Key:       key,
		RealmName: "weekend plans",
		Bootstrap: []Peer{{
			ID:        peerID,
			Addresses: []string{"/ip4/192.0.2.1/tcp/4001"},
		}},
		ExpiresIn: time.Hour,
		MaxUses:   3,
	}
}

func TestTicketRoundTrip(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()
	params := testParams(t)

	ticket, err := Create(signer, now, params)
	require.NoError(t, err)
	require.Equal(t, params.Realm.TopicID(), ticket.Topic)
	require.Equal(t, signer.NodeID(), ticket.Creator)

	encoded, err := ticket.Encode()
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, ticket, decoded)
	require.NoError(t, decoded.Verify(verifier, now.Add(time.Minute), 0))
}

func TestTicketExpiredDespiteValidSignature(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()

	ticket, err := Create(signer, now, testParams(t))
	require.NoError(t, err)

	require.NoError(t, ticket.Verify(verifier, now.Add(59*time.Minute), 0))
	require.ErrorIs(t, ticket.Verify(verifier, now.Add(2*time.Hour), 0), ErrExpired)
}

func TestTicketNoExpiry(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()
	params := testParams(t)
	params.ExpiresIn = 0

	ticket, err := Create(signer, now, params)
	require.NoError(t, err)
	require.NoError(t, ticket.Verify(verifier, now.Add(24*365*time.Hour), 0))
}

func TestTicketNotYetValid(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()

	ticket, err := Create(signer, now, testParams(t))
	require.NoError(t, err)
	require.ErrorIs(t, ticket.Verify(verifier, now.Add(-time.Minute), 0), ErrNotYetValid)
}

func TestTicketUsageBudget(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()

	ticket, err := Create(signer, now, testParams(t))
	require.NoError(t, err)

	require.NoError(t, ticket.Verify(verifier, now, 0))
	require.NoError(t, ticket.Verify(verifier, now, 2))
	require.ErrorIs(t, ticket.Verify(verifier, now, 3), ErrUsageExceeded)

	unlimited := testParams(t)
	unlimited.MaxUses = 0
	ticket, err = Create(signer, now, unlimited)
	require.NoError(t, err)
	require.NoError(t, ticket.Verify(verifier, now, 1_000_000))
}

func TestTicketTamperedFieldsRejected(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()

	ticket, err := Create(signer, now, testParams(t))
	require.NoError(t, err)

	tampered := *ticket
	tampered.ExpiresAt = uint64(now.Add(1000 * time.Hour).UnixMilli())
	require.ErrorIs(t, tampered.Verify(verifier, now, 0), ErrSignatureInvalid)

	tampered = *ticket
	tampered.MaxUses = 0
	require.ErrorIs(t, tampered.Verify(verifier, now, 0), ErrSignatureInvalid)

	tampered = *ticket
	tampered.Key[0] ^= 0x01
	require.ErrorIs(t, tampered.Verify(verifier, now, 0), ErrSignatureInvalid)
}

func TestTicketWrongCreator(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	other, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()

	ticket, err := Create(signer, now, testParams(t))
	require.NoError(t, err)
	ticket.Creator = other.NodeID()
	require.ErrorIs(t, ticket.Verify(verifier, now, 0), ErrSignatureInvalid)
}

func TestTicketVersionGate(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	now := time.Now()

	ticket, err := Create(signer, now, testParams(t))
	require.NoError(t, err)
	ticket.Version = 42
	require.ErrorIs(t, ticket.Verify(verifier, now, 0), ErrUnsupportedVersion)
}

func TestTicketRequiresBootstrapPeers(t *testing.T) {
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	now := time.Now()
	params := testParams(t)
	params.Bootstrap = nil

	_, err = Create(signer, now, params)
	require.ErrorIs(t, err, ErrNoBootstrapPeers)
}

func TestTicketDecodeGarbage(t *testing.T) {
	_, err := Decode("not base64!!")
	require.ErrorIs(t, err, ErrMalformedTicket)

	_, err = Decode("YWJjZGVm") // valid base64, not a ticket
	require.ErrorIs(t, err, ErrMalformedTicket)
}

func TestBootstrapPeerInfo(t *testing.T) {
	var id types.NodeID
	id[0] = 9
	peer := Peer{
		ID:        id,
		Addresses: []string{"/ip4/192.0.2.1/tcp/4001", "bogus", "/ip4/192.0.2.2/udp/4001/quic-v1"},
	}
	info := peer.Info()
	require.Equal(t, id, info.ID)
	require.Equal(t, peers.SourceInvite, info.Source)
	require.Equal(t, peers.Offline, info.Status)
	require.Len(t, info.Addresses, 2) // the unparsable address is dropped
}
