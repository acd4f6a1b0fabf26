package invite

import (
	"github.com/spacemeshos/go-scale"
)

// EncodeScale implements scale codec interface.
func (p *Peer) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := p.ID.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStringSliceWithLimit(enc, p.Addresses, 8)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (p *Peer) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		n, err := p.ID.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStringSliceWithLimit(dec, 8)
		if err != nil {
			return total, err
		}
		total += n
		p.Addresses = field
	}
	return total, nil
}

// EncodeScale implements scale codec interface.
func (t *Ticket) EncodeScale(enc *scale.Encoder) (int, error) {
	var total int
	{
		n, err := scale.EncodeByte(enc, t.Version)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeByteArray(enc, t.InviteID[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Realm.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Topic.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Key.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStructSliceWithLimit(enc, t.Bootstrap, maxBootstrapPeers)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeStringWithLimit(enc, t.RealmName, maxRealmNameLen)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, t.CreatedAt)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact64(enc, t.ExpiresAt)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := scale.EncodeCompact32(enc, t.MaxUses)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Creator.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Signature.EncodeScale(enc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// DecodeScale implements scale codec interface.
func (t *Ticket) DecodeScale(dec *scale.Decoder) (int, error) {
	var total int
	{
		field, n, err := scale.DecodeByte(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.Version = field
	}
	{
		n, err := scale.DecodeByteArray(dec, t.InviteID[:])
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Realm.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Topic.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Key.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		field, n, err := scale.DecodeStructSliceWithLimit[Peer](dec, maxBootstrapPeers)
		if err != nil {
			return total, err
		}
		total += n
		t.Bootstrap = field
	}
	{
		field, n, err := scale.DecodeStringWithLimit(dec, maxRealmNameLen)
		if err != nil {
			return total, err
		}
		total += n
		t.RealmName = field
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.CreatedAt = field
	}
	{
		field, n, err := scale.DecodeCompact64(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.ExpiresAt = field
	}
	{
		field, n, err := scale.DecodeCompact32(dec)
		if err != nil {
			return total, err
		}
		total += n
		t.MaxUses = field
	}
	{
		n, err := t.Creator.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	{
		n, err := t.Signature.DecodeScale(dec)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
