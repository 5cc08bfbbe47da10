// Package rel holds the filter query structures: a set of feed sources
// combined with a root boolean expression, and the named filter definitions
// queries may reference.
package rel

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/value"
)

var (
	// ErrFilterNotFound is returned when a named filter does not exist after
	// the registry finished loading.
	ErrFilterNotFound = errors.New("rel: named filter not found")

	_ expr.BooleanNode = (*FilterQuery)(nil)
	_ expr.ParentNode  = (*FilterQuery)(nil)
)

type (
	// Source is a feed binding. It evaluates like any Boolean node and can be
	// activated to start receiving from its live feed.
	Source interface {
		expr.BooleanNode
		// FilterKey is the stable tag of the source kind, ie "local"
		FilterKey() string
		// FilterValue is the source parameter, a search query or filter name.
		FilterValue() string
		// Activate and Deactivate are idempotent.
		Activate()
		Deactivate()
	}

	// Registry resolves named filters. It is owned by the application.
	Registry interface {
		Lookup(name string) (*FilterDefinition, bool)
		// AllGroupsPopulated is false while definitions are still loading,
		// a missing name is not an error until then.
		AllGroupsPopulated() bool
	}
)

// FilterQuery binds sources to a root expression. An item matches if any
// source accepts it and the root expression is true. No sources means every
// item, no root expression means true.
type FilterQuery struct {
	Sources []Source
	Filter  expr.Node
}

func NewFilterQuery(filter expr.Node, sources ...Source) *FilterQuery {
	return &FilterQuery{Sources: sources, Filter: filter}
}

func (m *FilterQuery) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }

func (m *FilterQuery) Children() []expr.Node {
	nodes := make([]expr.Node, 0, len(m.Sources)+1)
	for _, s := range m.Sources {
		nodes = append(nodes, s)
	}
	if m.Filter != nil {
		nodes = append(nodes, m.Filter)
	}
	return nodes
}

// ToQuery is `from local:"name", search:"q" where <expr>`.
func (m *FilterQuery) ToQuery() string {
	var sb strings.Builder
	if len(m.Sources) > 0 {
		sb.WriteString("from ")
		for i, s := range m.Sources {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(s.ToQuery())
		}
	}
	if m.Filter != nil || len(m.Sources) == 0 {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString("where ")
		if m.Filter != nil {
			sb.WriteString(m.Filter.ToQuery())
		} else {
			sb.WriteString("true")
		}
	}
	return sb.String()
}

// Validate checks the root expression is Boolean and well formed.
func (m *FilterQuery) Validate() error {
	if m.Filter == nil {
		return nil
	}
	if !m.Filter.SupportedTypes().Has(value.BooleanKind) {
		return &expr.ValidationError{
			Operator: "where",
			Left:     m.Filter.SupportedTypes(),
			Right:    value.NewKinds(value.BooleanKind),
			Query:    m.Filter.ToQuery(),
		}
	}
	return expr.Validate(m.Filter)
}

func (m *FilterQuery) BooleanEvaluator() (expr.BoolFunc, error) {
	srcs := make([]expr.BoolFunc, 0, len(m.Sources))
	for _, s := range m.Sources {
		fn, err := s.BooleanEvaluator()
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, fn)
	}
	filter := expr.TautologyFunc
	if m.Filter != nil {
		fn, err := expr.BooleanEvaluator(m.Filter)
		if err != nil {
			return nil, err
		}
		filter = fn
	}
	if len(srcs) == 0 {
		return filter, nil
	}
	return func(s *model.Status) bool {
		for _, src := range srcs {
			if src(s) {
				return filter(s)
			}
		}
		return false
	}, nil
}

// BooleanSQL is `(src1 or src2) and (root)`.
func (m *FilterQuery) BooleanSQL() (string, error) {
	parts := make([]string, 0, 2)
	if len(m.Sources) > 0 {
		srcs := make([]string, 0, len(m.Sources))
		for _, s := range m.Sources {
			q, err := s.BooleanSQL()
			if err != nil {
				return "", err
			}
			srcs = append(srcs, expr.Parenthesize(q))
		}
		parts = append(parts, "("+strings.Join(srcs, " or ")+")")
	}
	if m.Filter != nil {
		q, err := expr.BooleanSQL(m.Filter)
		if err != nil {
			return "", err
		}
		parts = append(parts, expr.Parenthesize(q))
	}
	switch len(parts) {
	case 0:
		return expr.SQLTrue, nil
	case 1:
		return parts[0], nil
	}
	return parts[0] + " and " + parts[1], nil
}

// Activate starts every source feed.
func (m *FilterQuery) Activate() {
	for _, s := range m.Sources {
		s.Activate()
	}
}

// Deactivate stops every source feed.
func (m *FilterQuery) Deactivate() {
	for _, s := range m.Sources {
		s.Deactivate()
	}
}

// FilterDefinition is a saved, named filter. The registry owns it, nodes
// referencing it by name only cache the pointer.
type FilterDefinition struct {
	Name string

	mu      sync.RWMutex
	query   *FilterQuery
	removed atomic.Bool
}

func NewFilterDefinition(name string, q *FilterQuery) *FilterDefinition {
	return &FilterDefinition{Name: name, query: q}
}

// Query is nil for a definition without any query.
func (m *FilterDefinition) Query() *FilterQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.query
}

// SetQuery replaces the query in place, references pick it up on their next
// resolution.
func (m *FilterDefinition) SetQuery(q *FilterQuery) {
	m.mu.Lock()
	m.query = q
	m.mu.Unlock()
}

// MarkRemoved flags a definition deleted from its registry so cached
// references resolve the name again.
func (m *FilterDefinition) MarkRemoved() { m.removed.Store(true) }
func (m *FilterDefinition) Removed() bool { return m.removed.Load() }
