// Package gossip implements the realm synchronization protocol: the wire
// messages exchanged on a realm topic, the signed envelope around them, and
// the state machine that keeps replicas converging.
package gossip

import (
	"errors"

	"github.com/spacemeshos/go-scale"
	"go.uber.org/zap/zapcore"

	"github.com/realmesh/go-realmesh/common/types"
)

const (
	// maxChangeBytes bounds the opaque CRDT change blob in a single message.
	maxChangeBytes = 4 << 20
	// maxHeads bounds the number of change hashes in a head set.
	maxHeads = 2048
)

// MessageType tags the active variant of a Message.
type MessageType uint8

const (
	// MessageTypeChanges carries CRDT change bytes plus the sender's heads.
	MessageTypeChanges MessageType = iota + 1
	// MessageTypeSyncRequest solicits changes missing from the requester.
	MessageTypeSyncRequest
	// MessageTypeSyncMessage carries engine-level sync protocol bytes.
	MessageTypeSyncMessage
	// MessageTypeHeads announces the sender's current head set.
	MessageTypeHeads
)

// String returns the string representation of a message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeChanges:
		return "changes"
	case MessageTypeSyncRequest:
		return "sync_request"
	case MessageTypeSyncMessage:
		return "sync_message"
	case MessageTypeHeads:
		return "heads"
	default:
		return "unknown"
	}
}

// Message is the closed union of the four gossip message kinds. Exactly one
// variant is active; Payload holds it and Type selects it on the wire.
type Message struct {
	// MessageTypeChanges | MessageTypeSyncRequest | MessageTypeSyncMessage | MessageTypeHeads
	Type MessageType
	// Changes | SyncRequest | SyncMessage | Heads
	Payload scale.Type
}

// NewChanges wraps a change blob and head set into a gossip message.
func NewChanges(changes []byte, heads []types.ChangeHash) *Message {
	return &Message{Type: MessageTypeChanges, Payload: &Changes{Changes: changes, Heads: heads}}
}

// NewSyncRequest wraps the requester's heads into a gossip message.
func NewSyncRequest(heads []types.ChangeHash) *Message {
	return &Message{Type: MessageTypeSyncRequest, Payload: &SyncRequest{Heads: heads}}
}

// NewSyncMessage wraps engine sync bytes, optionally targeted at one node.
func NewSyncMessage(to *types.NodeID, data []byte) *Message {
	return &Message{Type: MessageTypeSyncMessage, Payload: &SyncMessage{To: to, Message: data}}
}

// NewHeads wraps a head announcement into a gossip message.
func NewHeads(heads []types.ChangeHash) *Message {
	return &Message{Type: MessageTypeHeads, Payload: &Heads{Heads: heads}}
}

// EncodeScale implements scale codec interface.
func (m *Message) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		// not compact, as scale spec uses "full" uint8 for enums
		n, err := scale.EncodeByte(enc, byte(m.Type))
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := m.Payload.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (m *Message) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		typ, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		m.Type = MessageType(typ)
		total += n
	}
	switch m.Type {
	case MessageTypeChanges:
		var payload Changes
		n, err := payload.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		m.Payload = &payload
		total += n
	case MessageTypeSyncRequest:
		var payload SyncRequest
		n, err := payload.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		m.Payload = &payload
		total += n
	case MessageTypeSyncMessage:
		var payload SyncMessage
		n, err := payload.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		m.Payload = &payload
		total += n
	case MessageTypeHeads:
		var payload Heads
		n, err := payload.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		m.Payload = &payload
		total += n
	default:
		return total, errors.New("unknown gossip message type")
	}
	return total, nil
}

// MarshalLogObject implements logging encoder for Message.
func (m *Message) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("type", m.Type.String())
	if payload, ok := m.Payload.(zapcore.ObjectMarshaler); ok {
		return encoder.AddObject("payload", payload)
	}
	return nil
}

// Changes propagates freshly produced CRDT changes through the mesh. It is
// fire-and-forget: receivers apply what they have not seen and never reply.
type Changes struct {
	// Changes is the opaque change blob produced by the CRDT engine.
	Changes []byte `scale:"max=4194304"`
	// Heads is the sender's head set after producing the changes.
	Heads []types.ChangeHash `scale:"max=2048"`
}

// EncodeScale implements scale codec interface.
func (c *Changes) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, c.Changes, maxChangeBytes)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, c.Heads, maxHeads)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (c *Changes) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxChangeBytes)
		if err != nil {
			return total, err
		}
		total += n
		c.Changes = field
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[types.ChangeHash](dec, maxHeads)
		if err != nil {
			return total, err
		}
		total += n
		c.Heads = field
	}
	return total, nil
}

// MarshalLogObject implements logging encoder for Changes.
func (c *Changes) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt("size", len(c.Changes))
	encoder.AddInt("heads", len(c.Heads))
	return nil
}

// SyncRequest asks any peer holding changes beyond the requester's heads to
// broadcast the delta. It is the catch-up path for nodes that joined late or
// were partitioned.
type SyncRequest struct {
	Heads []types.ChangeHash `scale:"max=2048"`
}

// EncodeScale implements scale codec interface.
func (r *SyncRequest) EncodeScale(enc *scale.Encoder) (int, error) {
	return scale.EncodeStructSliceWithLimit(enc, r.Heads, maxHeads)
}

// DecodeScale implements scale codec interface.
func (r *SyncRequest) DecodeScale(dec *scale.Decoder) (int, error) {
	field, n, err := scale.DecodeStructSliceWithLimit[types.ChangeHash](dec, maxHeads)
	if err != nil {
		return n, err
	}
	r.Heads = field
	return n, nil
}

// MarshalLogObject implements logging encoder for SyncRequest.
func (r *SyncRequest) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt("heads", len(r.Heads))
	return nil
}

// SyncMessage carries raw engine-level sync protocol bytes. To is an
// optimization only: untargeted copies are valid for everyone, and receivers
// other than the target simply ignore targeted ones.
type SyncMessage struct {
	To      *types.NodeID
	Message []byte `scale:"max=4194304"`
}

// EncodeScale implements scale codec interface.
func (s *SyncMessage) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeOption(enc, s.To)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteSliceWithLimit(enc, s.Message, maxChangeBytes)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *SyncMessage) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		field, n, err := scale.DecodeOption[types.NodeID](dec)
		if err != nil {
			return total, err
		}
		total += n
		s.To = field
	}
	{
		field, n, err := scale.DecodeByteSliceWithLimit(dec, maxChangeBytes)
		if err != nil {
			return total, err
		}
		total += n
		s.Message = field
	}
	return total, nil
}

// MarshalLogObject implements logging encoder for SyncMessage.
func (s *SyncMessage) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	if s.To != nil {
		encoder.AddString("to", s.To.ShortString())
	}
	encoder.AddInt("size", len(s.Message))
	return nil
}

// Heads announces the sender's current head set so that peers with diverged
// replicas can detect it and request a catch-up.
type Heads struct {
	Heads []types.ChangeHash `scale:"max=2048"`
}

// EncodeScale implements scale codec interface.
func (h *Heads) EncodeScale(enc *scale.Encoder) (int, error) {
	return scale.EncodeStructSliceWithLimit(enc, h.Heads, maxHeads)
}

// DecodeScale implements scale codec interface.
func (h *Heads) DecodeScale(dec *scale.Decoder) (int, error) {
	field, n, err := scale.DecodeStructSliceWithLimit[types.ChangeHash](dec, maxHeads)
	if err != nil {
		return n, err
	}
	h.Heads = field
	return n, nil
}

// MarshalLogObject implements logging encoder for Heads.
func (h *Heads) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddInt("heads", len(h.Heads))
	return nil
}
