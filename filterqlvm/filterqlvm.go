// Package filterqlvm evaluates filter queries, against single items with the
// compiled predicate or as SQL for store queries.
package filterqlvm

import (
	u "github.com/araddon/gou"

	"github.com/IroiKanta/StarryEyes/filterqlvm/compiler"
	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/rel"
)

// OptimizedVM evaluates filter queries through compiled closures, queries
// are compiled once and reused across items.
type OptimizedVM struct {
	compiler *compiler.DirectCompiler
}

// NewOptimizedVM creates a new optimized VM
func NewOptimizedVM(opts ...compiler.Option) *OptimizedVM {
	return &OptimizedVM{
		compiler: compiler.NewDirectCompiler(opts...),
	}
}

// CompileFilter compiles a filter query
func (vm *OptimizedVM) CompileFilter(q *rel.FilterQuery) (*compiler.CompiledFilter, error) {
	return vm.compiler.CompileFilter(q)
}

// Matches evaluates q against a single status.
func (vm *OptimizedVM) Matches(q *rel.FilterQuery, s *model.Status) (bool, error) {
	// Special case for match_all
	if q == nil || (q.Filter == nil && len(q.Sources) == 0) {
		return true, nil
	}
	compiled, err := vm.CompileFilter(q)
	if err != nil {
		return false, err
	}
	return compiled.Eval(s), nil
}

// Filter keeps the statuses q matches.
func (vm *OptimizedVM) Filter(q *rel.FilterQuery, statuses []*model.Status) ([]*model.Status, error) {
	compiled, err := vm.CompileFilter(q)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Status, 0, len(statuses))
	for _, s := range statuses {
		if compiled.Eval(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// SQL is the WHERE fragment of q.
func (vm *OptimizedVM) SQL(q *rel.FilterQuery) (string, error) {
	compiled, err := vm.CompileFilter(q)
	if err != nil {
		return "", err
	}
	return compiled.SQL, nil
}

// Activate starts the live sources of q. A query that does not compile, ie
// a recursive named filter, is rejected before any source starts.
func (vm *OptimizedVM) Activate(q *rel.FilterQuery) error {
	if _, err := vm.CompileFilter(q); err != nil {
		u.Warnf("not activating %q: %v", q.ToQuery(), err)
		return err
	}
	q.Activate()
	return nil
}

// Deactivate stops the live sources of q and drops its compiled form.
func (vm *OptimizedVM) Deactivate(q *rel.FilterQuery) {
	q.Deactivate()
	vm.compiler.Forget(q)
}

// Purge drops all compiled queries.
func (vm *OptimizedVM) Purge() { vm.compiler.Purge() }
