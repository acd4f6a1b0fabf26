package types

import (
	"encoding/hex"

	"github.com/spacemeshos/go-scale"
)

const (
	// EdSignatureSize in bytes.
	EdSignatureSize = 64
)

// EdSignature is an ed25519 signature.
type EdSignature [EdSignatureSize]byte

// Bytes returns the signature as a byte slice.
func (s EdSignature) Bytes() []byte { return s[:] }

// String returns a hex representation of the signature.
func (s EdSignature) String() string { return hex.EncodeToString(s[:]) }

// EmptyEdSignature is a canonical empty EdSignature.
var EmptyEdSignature EdSignature

// EncodeScale implements scale codec interface.
func (s *EdSignature) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, s[:])
}

// DecodeScale implements scale codec interface.
func (s *EdSignature) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, s[:])
}
