package value

import (
	"sync"

	"github.com/google/btree"
)

const syncIDSetDegree = 16

// SyncIDSet is an ordered id set safe for concurrent use. Inserts are
// infrequent (push callbacks) and reads are many (predicate evaluation), so
// a single RWMutex guards the tree.
type SyncIDSet struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[int64]
}

func NewSyncIDSet() *SyncIDSet {
	return &SyncIDSet{tree: btree.NewOrderedG[int64](syncIDSetDegree)}
}

// Add inserts id, returning false if it was already present.
func (m *SyncIDSet) Add(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.tree.ReplaceOrInsert(id)
	return !existed
}

func (m *SyncIDSet) Contains(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Has(id)
}

func (m *SyncIDSet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Ascend iterates over a snapshot so fn may call back into the set.
func (m *SyncIDSet) Ascend(fn func(id int64) bool) {
	for _, id := range m.Snapshot() {
		if !fn(id) {
			return
		}
	}
}

// Snapshot copies the current members in ascending order.
func (m *SyncIDSet) Snapshot() IDs {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make(IDs, 0, m.tree.Len())
	m.tree.Ascend(func(id int64) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}
