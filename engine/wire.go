package engine

import (
	"github.com/spacemeshos/go-scale"
)

const (
	maxChangesPerBlob = 65536
	maxChangeSize     = 1 << 20
)

type change struct {
	Data []byte `scale:"max=1048576"`
}

type changeList struct {
	Changes []change `scale:"max=65536"`
}

// EncodeScale implements scale codec interface.
func (c *change) EncodeScale(enc *scale.Encoder) (int, error) {
	return scale.EncodeByteSliceWithLimit(enc, c.Data, maxChangeSize)
}

// DecodeScale implements scale codec interface.
func (c *change) DecodeScale(dec *scale.Decoder) (int, error) {
	field, n, err := scale.DecodeByteSliceWithLimit(dec, maxChangeSize)
	if err != nil {
		return n, err
	}
	c.Data = field
	return n, nil
}

// EncodeScale implements scale codec interface.
func (l *changeList) EncodeScale(enc *scale.Encoder) (int, error) {
	return scale.EncodeStructSliceWithLimit(enc, l.Changes, maxChangesPerBlob)
}

// DecodeScale implements scale codec interface.
func (l *changeList) DecodeScale(dec *scale.Decoder) (int, error) {
	field, n, err := scale.DecodeStructSliceWithLimit[change](dec, maxChangesPerBlob)
	if err != nil {
		return n, err
	}
	l.Changes = field
	return n, nil
}
