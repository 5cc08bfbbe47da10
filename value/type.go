package value

import (
	"strings"
)

// Kind is the type lattice expression nodes advertise and dispatch on.
type Kind uint8

const (
	// Enum values for the Kind lattice, DO NOT CHANGE the numbers, they are
	// bit positions in Kinds
	BooleanKind Kind = 0
	NumericKind Kind = 1
	StringKind  Kind = 2
	SetKind     Kind = 3
)

var (
	kindToStr = map[Kind]string{
		BooleanKind: "boolean",
		NumericKind: "numeric",
		StringKind:  "string",
		SetKind:     "set",
	}
	// AllKinds in dispatch priority order for display.
	AllKinds = []Kind{BooleanKind, NumericKind, StringKind, SetKind}
)

func (k Kind) String() string {
	if s, ok := kindToStr[k]; ok {
		return s
	}
	return "invalid"
}

// Valid is false for any value outside the closed lattice.
func (k Kind) Valid() bool {
	_, ok := kindToStr[k]
	return ok
}

// KindFromString Given a string, convert to Kind
func KindFromString(s string) (Kind, bool) {
	for k, ks := range kindToStr {
		if ks == s {
			return k, true
		}
	}
	return 0, false
}

// Kinds is the set of kinds a node supports. It is fixed at node construction.
type Kinds uint8

// NewKinds builds a Kinds set, ignoring invalid kinds.
func NewKinds(ks ...Kind) Kinds {
	var m Kinds
	for _, k := range ks {
		if k.Valid() {
			m |= 1 << k
		}
	}
	return m
}

func (m Kinds) Has(k Kind) bool { return k.Valid() && m&(1<<k) != 0 }
func (m Kinds) Empty() bool     { return m == 0 }

// Only is true if k is the single member of the set.
func (m Kinds) Only(k Kind) bool { return k.Valid() && m == 1<<k }

// Intersect returns the kinds present in both sets.
func (m Kinds) Intersect(o Kinds) Kinds { return m & o }

// Slice lists the members in lattice order.
func (m Kinds) Slice() []Kind {
	ks := make([]Kind, 0, len(AllKinds))
	for _, k := range AllKinds {
		if m.Has(k) {
			ks = append(ks, k)
		}
	}
	return ks
}

func (m Kinds) String() string {
	names := make([]string, 0, len(AllKinds))
	for _, k := range m.Slice() {
		names = append(names, k.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
