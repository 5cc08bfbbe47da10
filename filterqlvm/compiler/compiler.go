package compiler

import (
	"sync"

	u "github.com/araddon/gou"
	"github.com/dchest/siphash"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/optimization"
	"github.com/IroiKanta/StarryEyes/rel"
)

// siphash keys for cache hashing, process local
const (
	hashKey0 = 0x5374617272794579
	hashKey1 = 0x657346696c746572
)

// CompiledFilter is a filter query compiled to both backends.
type CompiledFilter struct {
	// Query that was compiled
	Query *rel.FilterQuery
	// Text is the canonical query text
	Text string
	// Eval is the per item predicate
	Eval expr.BoolFunc
	// SQL is the WHERE fragment for store queries
	SQL string

	version uint64
}

// Versioner reports a counter that changes whenever named filter
// definitions change, ie *registry.Registry.
type Versioner interface {
	Version() uint64
}

// DirectCompiler compiles filter queries into closures and SQL, caching the
// result per query. Entries compiled against an older registry version are
// compiled again since named references may resolve differently.
type DirectCompiler struct {
	versions Versioner
	optimize bool

	cache     map[uint64]*CompiledFilter
	cacheLock sync.RWMutex
}

type Option func(*DirectCompiler)

// WithVersioner makes cached entries expire on registry changes.
func WithVersioner(v Versioner) Option {
	return func(c *DirectCompiler) { c.versions = v }
}

// WithoutOptimization keeps And/Or operand order as written.
func WithoutOptimization() Option {
	return func(c *DirectCompiler) { c.optimize = false }
}

// NewDirectCompiler creates a new direct compiler
func NewDirectCompiler(opts ...Option) *DirectCompiler {
	c := &DirectCompiler{
		optimize: true,
		cache:    make(map[uint64]*CompiledFilter),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *DirectCompiler) version() uint64 {
	if c.versions == nil {
		return 0
	}
	return c.versions.Version()
}

// CompileFilter validates and compiles q.
func (c *DirectCompiler) CompileFilter(q *rel.FilterQuery) (*CompiledFilter, error) {
	text := q.ToQuery()
	hash := hashQuery(text)
	version := c.version()

	// Check cache first, the same text may belong to another query whose
	// live sources own other accept caches
	c.cacheLock.RLock()
	if compiled, ok := c.cache[hash]; ok && compiled.Query == q && compiled.version == version {
		c.cacheLock.RUnlock()
		return compiled, nil
	}
	c.cacheLock.RUnlock()

	compiled, err := c.compile(q, text, version)
	if err != nil {
		return nil, err
	}

	c.cacheLock.Lock()
	c.cache[hash] = compiled
	c.cacheLock.Unlock()

	return compiled, nil
}

func (c *DirectCompiler) compile(q *rel.FilterQuery, text string, version uint64) (*CompiledFilter, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql, err := q.BooleanSQL()
	if err != nil {
		return nil, err
	}

	evalQuery := q
	if c.optimize && q.Filter != nil {
		optimized, err := optimization.OptimizeBooleanNodes(q.Filter)
		if err != nil {
			return nil, err
		}
		evalQuery = &rel.FilterQuery{Sources: q.Sources, Filter: optimized}
	}
	eval, err := evalQuery.BooleanEvaluator()
	if err != nil {
		return nil, err
	}
	u.Debugf("compiled %q version=%d", text, version)
	return &CompiledFilter{Query: q, Text: text, Eval: eval, SQL: sql, version: version}, nil
}

// Purge drops every cached entry.
func (c *DirectCompiler) Purge() {
	c.cacheLock.Lock()
	n := len(c.cache)
	c.cache = make(map[uint64]*CompiledFilter)
	c.cacheLock.Unlock()
	u.Debugf("purged %d compiled filters", n)
}

// Forget drops the cached entry of q.
func (c *DirectCompiler) Forget(q *rel.FilterQuery) {
	hash := hashQuery(q.ToQuery())
	c.cacheLock.Lock()
	if compiled, ok := c.cache[hash]; ok && compiled.Query == q {
		delete(c.cache, hash)
	}
	c.cacheLock.Unlock()
}

func (c *DirectCompiler) Len() int {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return len(c.cache)
}

func hashQuery(text string) uint64 {
	return siphash.Hash(hashKey0, hashKey1, []byte(text))
}
