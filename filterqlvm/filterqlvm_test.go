package filterqlvm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/filterqlvm/compiler"
	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/receive"
	"github.com/IroiKanta/StarryEyes/registry"
	"github.com/IroiKanta/StarryEyes/rel"
	"github.com/IroiKanta/StarryEyes/sources"
)

var (
	john = &model.User{ID: 12345, ScreenName: "johndoe", Location: "New York", IsVerified: true}
	jane = &model.User{ID: 777, ScreenName: "jane"}
)

// Basic status with simple string and number fields
func newBasicStatus() *model.Status {
	return &model.Status{
		ID:             1,
		User:           john,
		Text:           "Learning golang and databases",
		Source:         `<a href="https://krile.example/">Krile</a>`,
		CreatedAt:      time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC),
		FavoritedUsers: []int64{777, 42},
	}
}

// Retweet with a reply original and several set values
func newComplexStatus() *model.Status {
	orig := &model.Status{
		ID:                50,
		User:              john,
		Text:              "Deploying the backend to production, wish me luck @jane",
		Source:            "web",
		CreatedAt:         time.Date(2023, 6, 10, 0, 0, 0, 0, time.UTC),
		InReplyToStatusID: 49,
		FavoritedUsers:    []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		RetweetedUsers:    []int64{777},
		MentionedUsers:    []int64{777},
	}
	return &model.Status{
		ID:              51,
		User:            jane,
		Text:            "RT @johndoe: " + orig.Text,
		CreatedAt:       time.Date(2023, 6, 10, 1, 0, 0, 0, time.UTC),
		RetweetedStatus: orig,
	}
}

func str(s string) expr.Node { return expr.NewStringLiteral(s) }
func num(n int64) expr.Node  { return expr.NewNumberLiteral(n) }
func field(name string) expr.Node {
	f, ok := expr.LookupField(name)
	if !ok {
		panic("unknown field " + name)
	}
	return f
}

// Define benchmark patterns with varying complexity
var benchmarkPatterns = []struct {
	name    string
	filter  expr.Node
	complex bool // whether to use complex status
	want    bool
}{
	{"Simple equality", expr.Equals(field("user"), str("JohnDoe")), false, true},
	{"Numeric comparison", expr.GreaterThan(field("user"), num(25)), false, true},
	{"String prefix", expr.StartsWith(field("text"), str("learning")), false, true},
	{"IN operator", expr.ContainedBy(num(42), field("favorites")), false, true},
	{"Simple AND", expr.NewAnd(expr.Equals(field("via"), str("krile")), expr.Contains(field("text"), str("golang"))), false, true},
	{"Simple OR", expr.NewOr(field("is_retweet"), field("user.is_protected")), false, false},
	{"Nested logic", expr.NewAnd(
		expr.NewOr(expr.GreaterThan(field("user"), num(20)), field("is_retweet")),
		expr.NewNot(field("user.is_protected")),
	), false, true},

	// More complex patterns for complex status
	{"Retweeter", expr.NewAnd(expr.Equals(field("retweeter"), str("jane")), expr.Equals(field("user"), num(12345))), true, true},
	{"Multiple numeric comparisons", expr.NewAnd(
		expr.GreaterOrEqual(field("in_reply_to"), num(49)),
		expr.LessThan(field("id"), num(100)),
		expr.GreaterThan(field("created_at"), num(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Unix())),
	), true, true},
	{"Set intersection", expr.Contains(field("favorites"), expr.NewSetLiteral(10, 11, 12)), true, true},
	{"Mentions user", expr.Contains(field("mentions"), field("retweeter")), true, true},
	{"Location", expr.Contains(field("user.location"), str("york")), true, true},
	{"Deep nested conditions", expr.NewOr(
		expr.NewAnd(expr.LessThan(field("id"), num(10)), field("user.is_verified")),
		expr.NewAnd(field("is_retweet"), expr.NewOr(field("retweeter.is_protected"), expr.EndsWith(field("text"), str("@JANE")))),
	), true, true},
}

// Benchmarks for Optimized VM
func BenchmarkOptimizedVM(b *testing.B) {
	optimizedVM := NewOptimizedVM()

	for _, pattern := range benchmarkPatterns {
		b.Run(pattern.name, func(b *testing.B) {
			filter := rel.NewFilterQuery(pattern.filter)

			var s *model.Status
			if pattern.complex {
				s = newComplexStatus()
			} else {
				s = newBasicStatus()
			}

			// Pre-compile to ensure we're measuring execution time, not compilation
			_, err := optimizedVM.CompileFilter(filter)
			if err != nil {
				b.Fatalf("Failed to compile filter: %v", err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				optimizedVM.Matches(filter, s)
			}
		})
	}
}

// Verify that optimized and as-written operand order agree
func TestVMConsistency(t *testing.T) {
	standardVM := NewOptimizedVM(compiler.WithoutOptimization())
	optimizedVM := NewOptimizedVM()

	for _, pattern := range benchmarkPatterns {
		t.Run(pattern.name, func(t *testing.T) {
			filter := rel.NewFilterQuery(pattern.filter)
			for _, s := range []*model.Status{newBasicStatus(), newComplexStatus()} {
				standardMatches, err := standardVM.Matches(filter, s)
				require.NoError(t, err)
				optimizedMatches, err := optimizedVM.Matches(filter, s)
				require.NoError(t, err)
				assert.Equal(t, standardMatches, optimizedMatches)
			}

			var s *model.Status
			if pattern.complex {
				s = newComplexStatus()
			} else {
				s = newBasicStatus()
			}
			got, err := optimizedVM.Matches(filter, s)
			require.NoError(t, err)
			assert.Equal(t, pattern.want, got)
		})
	}
}

func TestMatchAll(t *testing.T) {
	vm := NewOptimizedVM()
	ok, err := vm.Matches(nil, newBasicStatus())
	require.NoError(t, err)
	assert.True(t, ok)

	q := rel.NewFilterQuery(nil)
	ok, err = vm.Matches(q, newBasicStatus())
	require.NoError(t, err)
	assert.True(t, ok)
	sql, err := vm.SQL(q)
	require.NoError(t, err)
	assert.Equal(t, expr.SQLTrue, sql)
}

func TestCompileCache(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)
	reg.SetPopulated(true)
	_, err = reg.Add("golang", rel.NewFilterQuery(expr.Contains(field("text"), str("golang"))))
	require.NoError(t, err)

	vm := NewOptimizedVM(compiler.WithVersioner(reg))
	q := rel.NewFilterQuery(nil, sources.NewLocal("golang", reg))

	c1, err := vm.CompileFilter(q)
	require.NoError(t, err)
	c2, err := vm.CompileFilter(q)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, `from local:"golang"`, c1.Text)
	assert.True(t, c1.Eval(newBasicStatus()))

	// a registry change recompiles
	_, err = reg.Put("golang", rel.NewFilterQuery(expr.Contains(field("text"), str("rust"))))
	require.NoError(t, err)
	c3, err := vm.CompileFilter(q)
	require.NoError(t, err)
	assert.NotSame(t, c1, c3)
	assert.False(t, c3.Eval(newBasicStatus()))

	// same text, other query: no sharing of live caches
	hub := receive.NewHub("search")
	a := rel.NewFilterQuery(nil, sources.NewSearch("go", hub))
	b := rel.NewFilterQuery(nil, sources.NewSearch("go", hub))
	ca, err := vm.CompileFilter(a)
	require.NoError(t, err)
	cb, err := vm.CompileFilter(b)
	require.NoError(t, err)
	assert.NotSame(t, ca, cb)
	assert.Same(t, b, cb.Query)
}

func TestActivateRejectsRecursion(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)
	reg.SetPopulated(true)
	hub := receive.NewHub("search")

	search := sources.NewSearch("gophers", hub)
	aq := rel.NewFilterQuery(nil, sources.NewLocal("b", reg), search)
	_, err = reg.Add("a", aq)
	require.NoError(t, err)
	_, err = reg.Add("b", rel.NewFilterQuery(nil, sources.NewLocal("a", reg)))
	require.NoError(t, err)

	vm := NewOptimizedVM(compiler.WithVersioner(reg))
	err = vm.Activate(aq)
	assert.True(t, errors.Is(err, sources.ErrRecursiveFilter))
	assert.False(t, search.IsActive())
	assert.Equal(t, 0, hub.Registrations("gophers"))

	// fixed
	_, err = reg.Put("b", rel.NewFilterQuery(expr.Tautology))
	require.NoError(t, err)
	require.NoError(t, vm.Activate(aq))
	assert.True(t, search.IsActive())
	assert.Equal(t, 1, hub.Registrations("gophers"))

	hub.Push("gophers", 1)
	ok, err := vm.Matches(aq, newBasicStatus())
	require.NoError(t, err)
	assert.True(t, ok)

	vm.Deactivate(aq)
	assert.Equal(t, 0, hub.Registrations("gophers"))
}

func TestFilter(t *testing.T) {
	vm := NewOptimizedVM()
	q := rel.NewFilterQuery(field("is_retweet"))
	out, err := vm.Filter(q, []*model.Status{newBasicStatus(), newComplexStatus()})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(51), out[0].ID)

	_, err = vm.Filter(rel.NewFilterQuery(expr.Contains(field("created_at"), str("x"))), nil)
	assert.True(t, errors.Is(err, expr.ErrNoCommonKind))
}

func TestMissingNameAfterPopulate(t *testing.T) {
	reg, err := registry.New()
	require.NoError(t, err)
	vm := NewOptimizedVM(compiler.WithVersioner(reg))
	q := rel.NewFilterQuery(nil, sources.NewLocal("missing", reg))

	// still loading, the name may show up
	ok, err := vm.Matches(q, newBasicStatus())
	require.NoError(t, err)
	assert.True(t, ok)

	reg.SetPopulated(true)
	_, err = vm.Matches(q, newBasicStatus())
	assert.True(t, errors.Is(err, rel.ErrFilterNotFound), "%v", err)

	// and it resolves once defined
	_, err = reg.Add("missing", rel.NewFilterQuery(expr.Contains(field("text"), str("golang"))))
	require.NoError(t, err)
	ok, err = vm.Matches(q, newBasicStatus())
	require.NoError(t, err)
	assert.True(t, ok)
}
