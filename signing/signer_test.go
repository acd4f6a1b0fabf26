package signing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/realmesh/go-realmesh/common/types"
)

func TestSignVerify(t *testing.T) {
	signer, err := NewEdSigner()
	require.NoError(t, err)
	verifier, err := NewEdVerifier()
	require.NoError(t, err)

	msg := []byte("a message to sync")
	sig := signer.Sign(GOSSIP, msg)
	require.True(t, verifier.Verify(GOSSIP, signer.NodeID(), msg, sig))
}

func TestDomainSeparation(t *testing.T) {
	signer, err := NewEdSigner()
	require.NoError(t, err)
	verifier, err := NewEdVerifier()
	require.NoError(t, err)

	msg := []byte("a message to sync")
	sig := signer.Sign(GOSSIP, msg)
	require.False(t, verifier.Verify(INVITE, signer.NodeID(), msg, sig),
		"signature for domain %s must not verify in domain %s", GOSSIP, INVITE)
}

func TestTamperedMessage(t *testing.T) {
	signer, err := NewEdSigner()
	require.NoError(t, err)
	verifier, err := NewEdVerifier()
	require.NoError(t, err)

	msg := []byte("a message to sync")
	sig := signer.Sign(GOSSIP, msg)
	for i := range msg {
		tampered := append([]byte(nil), msg...)
		tampered[i] ^= 0x01
		require.False(t, verifier.Verify(GOSSIP, signer.NodeID(), tampered, sig))
	}
	var badSig types.EdSignature
	copy(badSig[:], sig[:])
	badSig[0] ^= 0x01
	require.False(t, verifier.Verify(GOSSIP, signer.NodeID(), msg, badSig))
}

func TestPrefixMismatch(t *testing.T) {
	signer, err := NewEdSigner(WithPrefix([]byte("realmesh/v0")))
	require.NoError(t, err)
	verifier, err := NewEdVerifier(WithVerifierPrefix([]byte("realmesh/v1")))
	require.NoError(t, err)

	msg := []byte("a message to sync")
	sig := signer.Sign(GOSSIP, msg)
	require.False(t, verifier.Verify(GOSSIP, signer.NodeID(), msg, sig))
}

func TestKeyFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.key")
	signer, err := NewEdSigner(ToFile(path))
	require.NoError(t, err)

	loaded, err := NewEdSigner(FromFile(path))
	require.NoError(t, err)
	require.Equal(t, signer.NodeID(), loaded.NodeID())
	require.Equal(t, "identity.key", loaded.Name())
}
