package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	kindToInt = map[Kind]uint8{
		BooleanKind: 0,
		NumericKind: 1,
		StringKind:  2,
		SetKind:     3,
	}
)

func TestAllKindsDefined(t *testing.T) {
	for k := range kindToInt {
		_, ok := kindToStr[k]
		assert.True(t, ok)
	}
	for k := range kindToStr {
		_, ok := kindToInt[k]
		assert.True(t, ok)
	}
	assert.Equal(t, len(kindToStr), len(AllKinds))
}

func TestKindUint8(t *testing.T) {
	for k := range kindToStr {
		assert.Equal(t, kindToInt[k], uint8(k))
	}
}

func TestKindString(t *testing.T) {
	for k, s := range kindToStr {
		assert.Equal(t, s, k.String())
		back, ok := KindFromString(s)
		assert.True(t, ok)
		assert.Equal(t, k, back)
	}
	assert.Equal(t, "invalid", Kind(9).String())
	_, ok := KindFromString("map")
	assert.False(t, ok)
}

func TestKinds(t *testing.T) {
	ks := NewKinds(NumericKind, StringKind)
	assert.True(t, ks.Has(NumericKind))
	assert.True(t, ks.Has(StringKind))
	assert.False(t, ks.Has(SetKind))
	assert.False(t, ks.Has(BooleanKind))
	assert.False(t, ks.Has(Kind(9)))
	assert.False(t, ks.Empty())
	assert.False(t, ks.Only(StringKind))
	assert.Equal(t, "{numeric,string}", ks.String())
	assert.Equal(t, []Kind{NumericKind, StringKind}, ks.Slice())

	b := NewKinds(BooleanKind)
	assert.True(t, b.Only(BooleanKind))
	assert.True(t, ks.Intersect(b).Empty())
	assert.True(t, NewKinds(Kind(7)).Empty())
	assert.Equal(t, NewKinds(StringKind), ks.Intersect(NewKinds(StringKind, SetKind)))
}
