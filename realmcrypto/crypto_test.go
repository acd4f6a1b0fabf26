package realmcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/realmesh/go-realmesh/common/types"
)

func TestRoundTrip(t *testing.T) {
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)

	for _, plaintext := range [][]byte{
		nil,
		{},
		[]byte("x"),
		[]byte("a longer message with some structure in it"),
		make([]byte, 1<<16),
	} {
		blob, err := Encrypt(key, plaintext)
		require.NoError(t, err)
		got, err := Decrypt(key, blob)
		require.NoError(t, err)
		require.Equal(t, len(plaintext), len(got))
		if len(plaintext) > 0 {
			require.Equal(t, plaintext, got)
		}
	}
}

func TestNonceFreshness(t *testing.T) {
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)

	plaintext := []byte("same plaintext twice")
	first, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	second, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, first, second, "each encryption must draw a fresh nonce")
}

func TestTamperDetection(t *testing.T) {
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)

	blob, err := Encrypt(key, []byte("integrity protected"))
	require.NoError(t, err)

	for i := range blob {
		tampered := append([]byte(nil), blob...)
		tampered[i] ^= 0x01
		_, err := Decrypt(key, tampered)
		require.ErrorIs(t, err, ErrAuthFailed, "flipping byte %d must fail authentication", i)
	}
}

func TestWrongKey(t *testing.T) {
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)
	other, err := types.GenerateRealmKey()
	require.NoError(t, err)

	blob, err := Encrypt(key, []byte("for members only"))
	require.NoError(t, err)
	_, err = Decrypt(other, blob)
	require.ErrorIs(t, err, ErrAuthFailed)
}

func TestTruncatedBlob(t *testing.T) {
	key, err := types.GenerateRealmKey()
	require.NoError(t, err)
	_, err = Decrypt(key, []byte("short"))
	require.ErrorIs(t, err, ErrAuthFailed)
}
