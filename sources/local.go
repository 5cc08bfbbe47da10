// Package sources implements the feed bindings a filter query draws from:
// references to other named filters and live search/track feeds.
package sources

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	u "github.com/araddon/gou"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/rel"
	"github.com/IroiKanta/StarryEyes/value"
)

const LocalKey = "local"

var (
	// ErrRecursiveFilter is wrapped by every RecursionError.
	ErrRecursiveFilter = errors.New("sources: named filter references itself")

	_ rel.Source = (*Local)(nil)
)

// RecursionError names the chain of filter names leading back to the
// referencing filter, ie [a b a].
type RecursionError struct {
	Chain []string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("sources: named filter %q is recursive: %s", e.Chain[0], strings.Join(e.Chain, " -> "))
}
func (e *RecursionError) Unwrap() error { return ErrRecursiveFilter }

// Local references another named filter and evaluates to its query. The
// definition is looked up by name in the registry and the pointer is cached,
// the registry keeps ownership.
type Local struct {
	name string
	reg  rel.Registry

	mu     sync.Mutex
	target *rel.FilterDefinition

	active atomic.Bool
}

func NewLocal(name string, reg rel.Registry) *Local {
	return &Local{name: name, reg: reg}
}

func (m *Local) FilterKey() string           { return LocalKey }
func (m *Local) FilterValue() string         { return m.name }
func (m *Local) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }
func (m *Local) ToQuery() string             { return LocalKey + ":" + strconv.Quote(m.name) }

// Activate and Deactivate only track state, a named filter has no feed of
// its own.
func (m *Local) Activate()      { m.active.Store(true) }
func (m *Local) Deactivate()    { m.active.Store(false) }
func (m *Local) IsActive() bool { return m.active.Load() }

// Resolve looks up the referenced definition and checks the reference chain
// for cycles. It returns nil without error while the registry is still
// loading.
func (m *Local) Resolve() (*rel.FilterDefinition, error) {
	if m.name == "" {
		return nil, nil
	}
	m.mu.Lock()
	target := m.target
	if target != nil && target.Removed() {
		target = nil
		m.target = nil
	}
	m.mu.Unlock()

	if target == nil {
		def, ok := m.reg.Lookup(m.name)
		if !ok {
			if !m.reg.AllGroupsPopulated() {
				u.Debugf("named filter %q not loaded yet", m.name)
				return nil, nil
			}
			u.Warnf("named filter %q not found", m.name)
			return nil, fmt.Errorf("%w: %q", rel.ErrFilterNotFound, m.name)
		}
		m.mu.Lock()
		m.target = def
		m.mu.Unlock()
		target = def
	}

	// the target's contents may have changed since the last resolution
	if err := m.checkRecursion(target); err != nil {
		u.Warnf("%v", err)
		return nil, err
	}
	return target, nil
}

type hop struct {
	def  *rel.FilterDefinition
	path []string
}

// checkRecursion expands the named references reachable from target's
// query breadth first and fails if target shows up again.
func (m *Local) checkRecursion(target *rel.FilterDefinition) error {
	visited := map[*rel.FilterDefinition]bool{target: true}
	queue := []hop{{def: target, path: []string{m.name}}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) > expr.MaxDepth {
			return expr.ErrMaxDepth
		}
		q := cur.def.Query()
		if q == nil {
			continue
		}
		for _, src := range q.Sources {
			ref, ok := src.(*Local)
			if !ok || ref.name == "" {
				continue
			}
			def, ok := m.reg.Lookup(ref.name)
			if !ok {
				continue
			}
			path := append(append(make([]string, 0, len(cur.path)+1), cur.path...), ref.name)
			if def == target {
				return &RecursionError{Chain: path}
			}
			if visited[def] {
				continue
			}
			visited[def] = true
			queue = append(queue, hop{def: def, path: path})
		}
	}
	return nil
}

func (m *Local) BooleanEvaluator() (expr.BoolFunc, error) {
	target, err := m.Resolve()
	if err != nil {
		return nil, err
	}
	var q *rel.FilterQuery
	if target != nil {
		q = target.Query()
	}
	if q == nil {
		return expr.TautologyFunc, nil
	}
	return q.BooleanEvaluator()
}

func (m *Local) BooleanSQL() (string, error) {
	target, err := m.Resolve()
	if err != nil {
		return "", err
	}
	var q *rel.FilterQuery
	if target != nil {
		q = target.Query()
	}
	if q == nil {
		return expr.SQLTrue, nil
	}
	return q.BooleanSQL()
}
