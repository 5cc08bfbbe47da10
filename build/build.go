// Package build turns declarative filter documents, as found in config
// files, into expression trees and filter queries.
//
//	name: gophers
//	sources:
//	  - {kind: search, value: golang}
//	where:
//	  op: "&&"
//	  args:
//	    - {op: contains, args: [{field: text}, {value: gopher}]}
//	    - {op: "!", args: [{field: is_retweet}]}
package build

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	u "github.com/araddon/gou"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/receive"
	"github.com/IroiKanta/StarryEyes/rel"
	"github.com/IroiKanta/StarryEyes/sources"
)

var (
	// ErrInvalidSpec is wrapped by every error about a malformed document.
	ErrInvalidSpec = errors.New("build: invalid filter document")
)

type (
	// NodeSpec is one expression node. Exactly one of Op, Field or a bare
	// Value describes it: Op with Args for operators, Field for a status
	// accessor and Value alone for a literal. The "date" op takes its text
	// from Value.
	NodeSpec struct {
		Op    string     `mapstructure:"op" json:"op,omitempty"`
		Args  []NodeSpec `mapstructure:"args" json:"args,omitempty"`
		Field string     `mapstructure:"field" json:"field,omitempty"`
		Value any        `mapstructure:"value" json:"value,omitempty"`
	}

	// SourceSpec names a source, Kind is one of local, search or track.
	SourceSpec struct {
		Kind  string `mapstructure:"kind" json:"kind"`
		Value string `mapstructure:"value" json:"value"`
	}

	// FilterSpec is a named filter document.
	FilterSpec struct {
		Name    string       `mapstructure:"name" json:"name"`
		Sources []SourceSpec `mapstructure:"sources" json:"sources,omitempty"`
		Where   *NodeSpec    `mapstructure:"where" json:"where,omitempty"`
	}
)

// Builder holds what the built nodes are bound to.
type Builder struct {
	// Registry resolves local sources
	Registry rel.Registry
	// Search and Track receive live feeds, either may be nil if no document
	// uses that source kind
	Search receive.Receiver
	Track  receive.Receiver
	// Comparison applies to every string operator built
	Comparison expr.Comparison
	// Now anchors relative dates, time.Now if nil
	Now func() time.Time
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, fmt.Sprintf(format, args...))
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Query builds a filter query from sources and an optional root.
func (b *Builder) Query(fs FilterSpec) (*rel.FilterQuery, error) {
	var root expr.Node
	if fs.Where != nil {
		n, err := b.Node(*fs.Where)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", fs.Name, err)
		}
		root = n
	}
	srcs := make([]rel.Source, 0, len(fs.Sources))
	for _, ss := range fs.Sources {
		src, err := b.Source(ss)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", fs.Name, err)
		}
		srcs = append(srcs, src)
	}
	q := rel.NewFilterQuery(root, srcs...)
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("filter %q: %w", fs.Name, err)
	}
	return q, nil
}

func (b *Builder) Source(ss SourceSpec) (rel.Source, error) {
	switch strings.ToLower(ss.Kind) {
	case sources.LocalKey:
		if b.Registry == nil {
			return nil, invalid("no registry for local:%q", ss.Value)
		}
		return sources.NewLocal(ss.Value, b.Registry), nil
	case sources.SearchKey:
		if b.Search == nil {
			return nil, invalid("no receiver for search:%q", ss.Value)
		}
		return sources.NewSearch(ss.Value, b.Search), nil
	case sources.TrackKey:
		if b.Track == nil {
			return nil, invalid("no receiver for track:%q", ss.Value)
		}
		return sources.NewTrack(ss.Value, b.Track), nil
	}
	return nil, invalid("unknown source kind %q", ss.Kind)
}

// Node builds a single expression node.
func (b *Builder) Node(ns NodeSpec) (expr.Node, error) {
	return b.node(ns, 0)
}

func (b *Builder) node(ns NodeSpec, depth int) (expr.Node, error) {
	if depth > expr.MaxDepth {
		return nil, expr.ErrMaxDepth
	}
	if ns.Field != "" {
		if ns.Op != "" || len(ns.Args) > 0 {
			return nil, invalid("field %q cannot carry an op", ns.Field)
		}
		f, ok := expr.LookupField(ns.Field)
		if !ok {
			return nil, invalid("unknown field %q", ns.Field)
		}
		return f, nil
	}

	op := strings.ToLower(strings.TrimSpace(ns.Op))
	switch op {
	case "":
		if len(ns.Args) > 0 {
			return nil, invalid("args without op")
		}
		return literal(ns.Value)
	case "date":
		text, ok := ns.Value.(string)
		if !ok {
			return nil, invalid("date wants a string value, got %T", ns.Value)
		}
		d, err := expr.NewDate(text, b.now())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		return d, nil
	case "true":
		return expr.Tautology, nil
	case "false":
		return expr.Contradiction, nil
	}

	args := make([]expr.Node, 0, len(ns.Args))
	for _, a := range ns.Args {
		n, err := b.node(a, depth+1)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}

	switch op {
	case "&&", "and":
		return expr.NewAnd(args...), nil
	case "||", "or":
		return expr.NewOr(args...), nil
	case "!", "not":
		if len(args) != 1 {
			return nil, invalid("%q wants 1 arg, got %d", ns.Op, len(args))
		}
		return expr.NewNot(args[0]), nil
	}

	o, ok := expr.OperatorFromString(op)
	if !ok {
		return nil, invalid("unknown op %q", ns.Op)
	}
	if len(args) != 2 {
		return nil, invalid("%q wants 2 args, got %d", ns.Op, len(args))
	}
	bin := expr.NewBinary(o, args[0], args[1], expr.WithComparison(b.Comparison))
	if err := bin.Validate(); err != nil {
		u.Debugf("rejecting %s: %v", bin.ToQuery(), err)
		return nil, err
	}
	return bin, nil
}

// literal maps decoded yaml/json values, numbers may arrive as any int or
// float type.
func literal(v any) (expr.Node, error) {
	switch x := v.(type) {
	case nil:
		return nil, invalid("empty node")
	case bool:
		return expr.NewBoolLiteral(x), nil
	case string:
		return expr.NewStringLiteral(x), nil
	case []any:
		ids := make([]int64, 0, len(x))
		for _, e := range x {
			id, ok := toInt(e)
			if !ok {
				return nil, invalid("set members must be integers, got %v", e)
			}
			ids = append(ids, id)
		}
		return expr.NewSetLiteral(ids...), nil
	case []int64:
		return expr.NewSetLiteral(x...), nil
	case []int:
		ids := make([]int64, len(x))
		for i, id := range x {
			ids[i] = int64(id)
		}
		return expr.NewSetLiteral(ids...), nil
	}
	if n, ok := toInt(v); ok {
		return expr.NewNumberLiteral(n), nil
	}
	return nil, invalid("unsupported literal %T", v)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case float32:
		return toInt(float64(x))
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	}
	return 0, false
}

// Adder stores built filters under their names, ie *registry.Registry.
type Adder interface {
	rel.Registry
	Add(name string, q *rel.FilterQuery) (*rel.FilterDefinition, error)
	SetPopulated(done bool)
}

// Register builds every document and adds it to reg, then marks reg
// populated. Local references are resolved afterwards so documents may
// refer to ones later in the list, a recursive one is logged and left for
// activation to reject.
func Register(b *Builder, reg Adder, specs []FilterSpec) error {
	queries := make([]*rel.FilterQuery, 0, len(specs))
	for _, fs := range specs {
		q, err := b.Query(fs)
		if err != nil {
			return err
		}
		if _, err := reg.Add(fs.Name, q); err != nil {
			return err
		}
		queries = append(queries, q)
	}
	reg.SetPopulated(true)

	for i, q := range queries {
		if _, err := q.BooleanEvaluator(); err != nil {
			u.Warnf("filter %q: %v", specs[i].Name, err)
		}
	}
	return nil
}
