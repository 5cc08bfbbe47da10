// Package registry keeps the named filter definitions local sources resolve
// against.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	u "github.com/araddon/gou"
	"github.com/hashicorp/go-memdb"
	"github.com/mb0/glob"

	"github.com/IroiKanta/StarryEyes/rel"
)

const filterTable = "filter"

var (
	// ErrDuplicate is returned by Add for a name already registered.
	ErrDuplicate = errors.New("registry: duplicate filter name")

	_ rel.Registry = (*Registry)(nil)

	schema = &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			filterTable: {
				Name: filterTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
				},
			},
		},
	}
)

// Registry is an in-memory, transactional store of filter definitions.
// Version increases on every change so compiled filters can tell they are
// stale.
type Registry struct {
	db        *memdb.MemDB
	populated atomic.Bool
	version   atomic.Uint64
}

func New() (*Registry, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db}, nil
}

// Lookup finds a definition by exact name.
func (m *Registry) Lookup(name string) (*rel.FilterDefinition, bool) {
	txn := m.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(filterTable, "id", name)
	if err != nil || raw == nil {
		return nil, false
	}
	return raw.(*rel.FilterDefinition), true
}

// AllGroupsPopulated is false until SetPopulated(true), while definitions
// are loading a missing name resolves to tautology.
func (m *Registry) AllGroupsPopulated() bool { return m.populated.Load() }

// SetPopulated flips the loading state. A change bumps the version since
// missing names resolve differently on either side of it.
func (m *Registry) SetPopulated(done bool) {
	if m.populated.Swap(done) != done {
		m.version.Add(1)
		u.Debugf("registry populated=%v", done)
	}
}

func (m *Registry) Version() uint64 { return m.version.Load() }

// Add registers a new definition.
func (m *Registry) Add(name string, q *rel.FilterQuery) (*rel.FilterDefinition, error) {
	txn := m.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(filterTable, "id", name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	def := rel.NewFilterDefinition(name, q)
	if err := txn.Insert(filterTable, def); err != nil {
		return nil, err
	}
	txn.Commit()
	m.version.Add(1)
	u.Debugf("registered filter %q", name)
	return def, nil
}

// Put adds or replaces the query of name. An existing definition is updated
// in place so references resolved earlier see the change.
func (m *Registry) Put(name string, q *rel.FilterQuery) (*rel.FilterDefinition, error) {
	if def, ok := m.Lookup(name); ok {
		def.SetQuery(q)
		m.version.Add(1)
		return def, nil
	}
	def, err := m.Add(name, q)
	if errors.Is(err, ErrDuplicate) {
		// lost a race with another Put
		return m.Put(name, q)
	}
	return def, err
}

// Remove deletes name, reporting whether it existed.
func (m *Registry) Remove(name string) bool {
	txn := m.db.Txn(true)
	defer txn.Abort()
	raw, err := txn.First(filterTable, "id", name)
	if err != nil || raw == nil {
		return false
	}
	if err := txn.Delete(filterTable, raw); err != nil {
		u.Warnf("could not remove filter %q: %v", name, err)
		return false
	}
	txn.Commit()
	raw.(*rel.FilterDefinition).MarkRemoved()
	m.version.Add(1)
	return true
}

// Names lists registered names matching a glob pattern, ie "news.*", sorted.
// An empty pattern matches everything.
func (m *Registry) Names(pattern string) ([]string, error) {
	txn := m.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(filterTable, "id")
	if err != nil {
		return nil, err
	}
	var names []string
	for obj := it.Next(); obj != nil; obj = it.Next() {
		name := obj.(*rel.FilterDefinition).Name
		if pattern != "" {
			match, err := glob.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("registry: bad pattern %q: %w", pattern, err)
			}
			if !match {
				continue
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Registry) Len() int {
	names, _ := m.Names("")
	return len(names)
}
