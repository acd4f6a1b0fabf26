package gossip

import (
	"errors"
	"fmt"
	"time"

	"github.com/spacemeshos/go-scale"

	"github.com/realmesh/go-realmesh/codec"
	"github.com/realmesh/go-realmesh/common/types"
	"github.com/realmesh/go-realmesh/signing"
)

// wireVersion is the current envelope version. Decoders reject anything else.
const wireVersion = 0

// maxEnvelopeBytes bounds the encoded WireMessage carried inside a
// SignedMessage. It must admit the largest legal payload: a Changes message
// with a maxChangeBytes blob and maxHeads head hashes, plus the version,
// timestamp, type tag and length prefixes around them.
const maxEnvelopeBytes = maxChangeBytes + maxHeads*types.Hash32Length + 64

var (
	// ErrSignatureInvalid is returned when the envelope signature does not
	// verify against the public key carried in the envelope.
	ErrSignatureInvalid = errors.New("gossip: invalid envelope signature")
	// ErrMalformedEnvelope is returned when the envelope cannot be decoded.
	ErrMalformedEnvelope = errors.New("gossip: malformed envelope")
)

// WireMessage is the versioned inner envelope. The signature covers its
// encoded bytes, so the timestamp and message cannot be altered without
// invalidating it.
type WireMessage struct {
	Version   uint8
	Timestamp uint64 // unix milliseconds at signing time
	Message   Message
}

// EncodeScale implements scale codec interface.
func (w *WireMessage) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeByte(enc, w.Version)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, w.Timestamp)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := w.Message.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (w *WireMessage) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		field, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		total += n
		w.Version = field
	}
	if w.Version != wireVersion {
		return total, fmt.Errorf("unsupported wire version %d", w.Version)
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		w.Timestamp = field
	}
	{
		n, err := w.Message.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// SignedMessage is the outermost structure placed on the wire (before realm
// encryption). The signer's public key rides along so that any receiver can
// verify authenticity without prior key exchange; whether the sender is
// trusted is decided by realm membership, not here.
type SignedMessage struct {
	From types.NodeID
	// Data is the encoded WireMessage; the signature covers exactly these bytes.
	Data      []byte `scale:"max=4259904"`
	Signature types.EdSignature
}

// EncodeScale implements scale codec interface.
func (s *SignedMessage) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeByteArray(enc, s.From[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, s.Data, maxEnvelopeBytes)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, s.Signature[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *SignedMessage) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		n, err := scale.DecodeByteArray(dec, s.From[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxEnvelopeBytes)
		if err != nil {
			return total, err
		}
		total += n
		s.Data = field
	}
	{
		n, err := scale.DecodeByteArray(dec, s.Signature[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// SignAndEncode wraps msg into a versioned envelope stamped with now, signs
// the encoded envelope and returns the encoded SignedMessage ready for realm
// encryption.
func SignAndEncode(signer *signing.EdSigner, now time.Time, msg *Message) ([]byte, error) {
	wire := WireMessage{
		Version:   wireVersion,
		Timestamp: uint64(now.UnixMilli()),
		Message:   *msg,
	}
	data, err := codec.Encode(&wire)
	if err != nil {
		return nil, fmt.Errorf("encode wire message: %w", err)
	}
	signed := SignedMessage{
		From:      signer.NodeID(),
		Data:      data,
		Signature: signer.Sign(signing.GOSSIP, data),
	}
	raw, err := codec.Encode(&signed)
	if err != nil {
		return nil, fmt.Errorf("encode signed message: %w", err)
	}
	return raw, nil
}

// VerifyAndDecode decodes a SignedMessage, verifies the signature over the
// inner bytes and only then decodes them. The inner payload is never
// interpreted before its authenticity is established.
func VerifyAndDecode(verifier *signing.EdVerifier, raw []byte) (types.NodeID, time.Time, *Message, error) {
	var signed SignedMessage
	if err := codec.Decode(raw, &signed); err != nil {
		return types.EmptyNodeID, time.Time{}, nil, fmt.Errorf("%w: outer: %v", ErrMalformedEnvelope, err)
	}
	if !verifier.Verify(signing.GOSSIP, signed.From, signed.Data, signed.Signature) {
		return types.EmptyNodeID, time.Time{}, nil, ErrSignatureInvalid
	}
	var wire WireMessage
	if err := codec.Decode(signed.Data, &wire); err != nil {
		return types.EmptyNodeID, time.Time{}, nil, fmt.Errorf("%w: inner: %v", ErrMalformedEnvelope, err)
	}
	ts := time.UnixMilli(int64(wire.Timestamp))
	return signed.From, ts, &wire.Message, nil
}
