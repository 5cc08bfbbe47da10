package value

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

var (
	// force some types to implement interfaces
	_ IDSet = (IDs)(nil)
	_ IDSet = (*SyncIDSet)(nil)

	EmptyIDs = NewIDs()
)

// IDSet is the runtime value of a Set kind node: a set of identifiers.
type IDSet interface {
	Contains(id int64) bool
	// Ascend calls fn for each member in ascending order until fn returns false.
	Ascend(fn func(id int64) bool)
	Len() int
}

// IDs is an immutable sorted, de-duplicated IDSet.
type IDs []int64

func NewIDs(ids ...int64) IDs {
	v := slices.Clone(ids)
	slices.Sort(v)
	return IDs(slices.Compact(v))
}

func (m IDs) Len() int { return len(m) }
func (m IDs) Contains(id int64) bool {
	_, ok := slices.BinarySearch(m, id)
	return ok
}
func (m IDs) Ascend(fn func(id int64) bool) {
	for _, id := range m {
		if !fn(id) {
			return
		}
	}
}
func (m IDs) MarshalJSON() ([]byte, error) { return json.Marshal([]int64(m)) }
func (m IDs) ToString() string {
	sv := make([]string, len(m))
	for i, id := range m {
		sv[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(sv, ",")
}

// Intersects reports whether a and b share at least one member.
func Intersects(a, b IDSet) bool {
	if a == nil || b == nil {
		return false
	}
	// walk the smaller set, probe the larger one
	if a.Len() > b.Len() {
		a, b = b, a
	}
	found := false
	a.Ascend(func(id int64) bool {
		found = b.Contains(id)
		return !found
	})
	return found
}
