package store

import (
	"github.com/google/uuid"
	"github.com/spacemeshos/go-scale"

	"github.com/realmesh/go-realmesh/common/types"
)

const (
	maxRealms  = 1024
	maxPeers   = 4096
	maxInvites = 4096
)

type inviteUse struct {
	ID   uuid.UUID
	Uses uint32
}

// snapshot is the full on-disk state.
type snapshot struct {
	Realms  []RealmRecord `scale:"max=1024"`
	Peers   []PeerRecord  `scale:"max=4096"`
	Invites []inviteUse   `scale:"max=4096"`
}

// EncodeScale implements scale codec interface.
func (r *RealmRecord) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := r.ID.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStringWithLimit(enc, r.Name, 256)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.Key.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.Topic.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *RealmRecord) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		n, err := r.ID.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStringWithLimit(dec, 256)
		if err != nil {
			return total, err
		}
		total += n
		r.Name = field
	}
	{
		n, err := r.Key.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := r.Topic.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (r *PeerRecord) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := r.ID.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStringSliceWithLimit(enc, r.Addresses, 16)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByte(enc, r.Source)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, r.SharedRealms, 64)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (r *PeerRecord) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		n, err := r.ID.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStringSliceWithLimit(dec, 16)
		if err != nil {
			return total, err
		}
		total += n
		r.Addresses = field
	}
	{
		field, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		total += n
		r.Source = field
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[types.RealmID](dec, 64)
		if err != nil {
			return total, err
		}
		total += n
		r.SharedRealms = field
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (u *inviteUse) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeByteArray(enc, u.ID[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact32(enc, u.Uses)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (u *inviteUse) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		n, err := scale.DecodeByteArray(dec, u.ID[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		u.Uses = field
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (s *snapshot) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, s.Realms, maxRealms)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, s.Peers, maxPeers)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, s.Invites, maxInvites)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (s *snapshot) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		field, n, err := scale.DecodeStructSliceWithLimit[RealmRecord](dec, maxRealms)
		if err != nil {
			return total, err
		}
		total += n
		s.Realms = field
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[PeerRecord](dec, maxPeers)
		if err != nil {
			return total, err
		}
		total += n
		s.Peers = field
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[inviteUse](dec, maxInvites)
		if err != nil {
			return total, err
		}
		total += n
		s.Invites = field
	}
	return total, nil
}
