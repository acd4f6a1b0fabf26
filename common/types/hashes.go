package types

import (
	"encoding/hex"

	"github.com/spacemeshos/go-scale"
)

const (
	// Hash32Length is the expected length of a Hash32.
	Hash32Length = 32
)

// Hash32 represents a 32-byte blake3 hash of arbitrary data.
type Hash32 [Hash32Length]byte

// BytesToHash copies b into a Hash32. If b is longer than 32 bytes it is
// cropped from the left.
func BytesToHash(b []byte) (h Hash32) {
	h.SetBytes(b)
	return h
}

// Bytes gets the byte representation of the underlying hash.
func (h Hash32) Bytes() []byte { return h[:] }

// Hex converts a hash to a hex string.
func (h Hash32) Hex() string { return hex.EncodeToString(h[:]) }

// String implements the stringer interface and is used also by the logger.
func (h Hash32) String() string { return h.Hex() }

// ShortString returns the first few characters of the hash, for logging purposes.
func (h Hash32) ShortString() string {
	return Shorten(h.Hex(), 10)
}

// SetBytes sets the hash to the value of b.
// If b is larger than len(h), b will be cropped from the left.
func (h *Hash32) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-Hash32Length:]
	}
	copy(h[Hash32Length-len(b):], b)
}

// EncodeScale implements scale codec interface.
func (h *Hash32) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, h[:])
}

// DecodeScale implements scale codec interface.
func (h *Hash32) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, h[:])
}

// MarshalText returns the hex representation of h.
func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText parses a hash in hex syntax.
func (h *Hash32) UnmarshalText(input []byte) error {
	b, err := hex.DecodeString(string(input))
	if err != nil {
		return err
	}
	h.SetBytes(b)
	return nil
}

// ChangeHash identifies a single CRDT change by the hash of its content.
// The synchronization protocol treats it as opaque: change hashes are compared
// for equality and collected into head sets, nothing more.
type ChangeHash Hash32

// Bytes gets the byte representation of the underlying hash.
func (c ChangeHash) Bytes() []byte { return c[:] }

// String implements the stringer interface.
func (c ChangeHash) String() string { return hex.EncodeToString(c[:]) }

// ShortString returns a shortened hex representation, for logging purposes.
func (c ChangeHash) ShortString() string {
	return Shorten(c.String(), 10)
}

// EncodeScale implements scale codec interface.
func (c *ChangeHash) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, c[:])
}

// DecodeScale implements scale codec interface.
func (c *ChangeHash) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, c[:])
}

// Shorten shortens a string to a specified length.
func Shorten(s string, maxlen int) string {
	if len(s) <= maxlen {
		return s
	}
	return s[:maxlen]
}
