// Package realmcrypto implements the symmetric authenticated encryption
// applied to all gossip traffic of a realm. Every member holds the realm key;
// anyone without it can neither read nor forge realm messages.
package realmcrypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/realmesh/go-realmesh/common/types"
)

const (
	// KeySize is the realm key size, as expected by ChaCha20-Poly1305.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the per-message nonce size prepended to the ciphertext.
	NonceSize = chacha20poly1305.NonceSize
)

// ErrAuthFailed is returned when a ciphertext fails authentication: the data
// was corrupted, tampered with, or encrypted under a different key. No partial
// plaintext is ever returned alongside it.
var ErrAuthFailed = errors.New("realmcrypto: message authentication failed")

// Encrypt seals plaintext under the realm key with a fresh random 96-bit
// nonce and returns nonce || ciphertext. Nonce reuse is made negligible by
// randomness; there is no per-key counter state to coordinate between peers.
func Encrypt(key types.RealmKey, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, out[:NonceSize]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// Decrypt splits the nonce off blob and opens the remainder. Any integrity
// failure surfaces as ErrAuthFailed.
func Decrypt(key types.RealmKey, blob []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, ErrAuthFailed
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	plaintext, err := aead.Open(nil, blob[:NonceSize], blob[NonceSize:], nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
