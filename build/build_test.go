package build

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/receive"
	"github.com/IroiKanta/StarryEyes/registry"
	"github.com/IroiKanta/StarryEyes/rel"
	"github.com/IroiKanta/StarryEyes/sources"
)

var anchor = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newBuilder(t *testing.T) (*Builder, *registry.Registry, *receive.Hub) {
	reg, err := registry.New()
	require.NoError(t, err)
	hub := receive.NewHub("search")
	return &Builder{
		Registry: reg,
		Search:   hub,
		Track:    receive.NewHub("track"),
		Now:      func() time.Time { return anchor },
	}, reg, hub
}

func field(name string) NodeSpec { return NodeSpec{Field: name} }
func lit(v any) NodeSpec         { return NodeSpec{Value: v} }
func op(o string, args ...NodeSpec) NodeSpec {
	return NodeSpec{Op: o, Args: args}
}

func TestNodes(t *testing.T) {
	b, _, _ := newBuilder(t)

	tests := []struct {
		spec NodeSpec
		want string
	}{
		{field("text"), "text"},
		{lit(true), "true"},
		{lit(42), "42"},
		{lit(int64(-1)), "-1"},
		{lit(float64(7)), "7"},
		{lit("hi"), `"hi"`},
		{lit([]any{3, 1, 2}), "(1, 2, 3)"},
		{lit([]int64{5}), "(5)"},
		{NodeSpec{Op: "date", Value: "2024-01-02"}, `date("2024-01-02")`},
		{NodeSpec{Op: "TRUE"}, "true"},
		{op("contains", field("text"), lit("go")), `text contains "go"`},
		{op("in", field("user"), lit([]any{1, 2})), "user in (1, 2)"},
		{op("=", field("id"), lit(1)), "id == 1"},
		{op("<>", field("id"), lit(1)), "id != 1"},
		{op("and", op("!", field("is_retweet")), field("user.is_verified")), "!is_retweet && user.is_verified"},
		{op("||"), "false"},
		{op("&&"), "true"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			n, err := b.Node(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.ToQuery())
		})
	}
}

func TestRelativeDate(t *testing.T) {
	b, _, _ := newBuilder(t)
	n, err := b.Node(NodeSpec{Op: "date", Value: "now-1d"})
	require.NoError(t, err)
	d, ok := n.(*expr.DateLiteral)
	require.True(t, ok)
	assert.Equal(t, anchor.Add(-24*time.Hour), d.Time())
}

func TestNodeErrors(t *testing.T) {
	b, _, _ := newBuilder(t)

	tests := []struct {
		name string
		spec NodeSpec
		want error
	}{
		{"empty", NodeSpec{}, ErrInvalidSpec},
		{"unknown field", field("nope"), ErrInvalidSpec},
		{"field with op", NodeSpec{Field: "text", Op: "!"}, ErrInvalidSpec},
		{"unknown op", op("like", field("text"), lit("x")), ErrInvalidSpec},
		{"arity", op("contains", field("text")), ErrInvalidSpec},
		{"not arity", op("!"), ErrInvalidSpec},
		{"args without op", NodeSpec{Args: []NodeSpec{lit(1)}}, ErrInvalidSpec},
		{"bad set", lit([]any{1, "x"}), ErrInvalidSpec},
		{"fraction", lit(1.5), ErrInvalidSpec},
		{"bad date", NodeSpec{Op: "date", Value: "someday"}, ErrInvalidSpec},
		{"date not text", NodeSpec{Op: "date", Value: 3}, ErrInvalidSpec},
		{"no common kind", op("<", field("text"), lit(3)), expr.ErrNoCommonKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Node(tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "%v", err)
		})
	}
}

func TestCaseSensitivity(t *testing.T) {
	b, _, _ := newBuilder(t)
	s := &model.Status{User: &model.User{}, Text: "Hello"}
	spec := op("contains", field("text"), lit("hello"))

	n, err := b.Node(spec)
	require.NoError(t, err)
	fn, err := expr.BooleanEvaluator(n)
	require.NoError(t, err)
	assert.True(t, fn(s))

	b.Comparison = expr.CaseSensitive
	n, err = b.Node(spec)
	require.NoError(t, err)
	fn, err = expr.BooleanEvaluator(n)
	require.NoError(t, err)
	assert.False(t, fn(s))
	sql, err := expr.BooleanSQL(n)
	require.NoError(t, err)
	assert.Equal(t, `(status.Text LIKE '%hello%' escape '\')`, sql)
}

func TestQuery(t *testing.T) {
	b, reg, hub := newBuilder(t)

	where := op("&&", op("contains", field("text"), lit("gopher")), op("!", field("is_retweet")))
	q, err := b.Query(FilterSpec{
		Name:    "gophers",
		Sources: []SourceSpec{{Kind: "search", Value: "golang"}, {Kind: "local", Value: "friends"}},
		Where:   &where,
	})
	require.NoError(t, err)
	assert.Equal(t, `from search:"golang", local:"friends" where (text contains "gopher") && !is_retweet`, q.ToQuery())

	_, err = reg.Add("gophers", q)
	require.NoError(t, err)
	q.Activate()
	assert.Equal(t, 1, hub.Registrations("golang"))
	q.Deactivate()
	assert.Equal(t, 0, hub.Registrations("golang"))

	// sources only
	q, err = b.Query(FilterSpec{Name: "all", Sources: []SourceSpec{{Kind: "track", Value: "go"}}})
	require.NoError(t, err)
	require.Len(t, q.Sources, 1)
	assert.Equal(t, sources.TrackKey, q.Sources[0].FilterKey())
	assert.Nil(t, q.Filter)

	_, err = b.Query(FilterSpec{Name: "x", Sources: []SourceSpec{{Kind: "list", Value: "a"}}})
	assert.True(t, errors.Is(err, ErrInvalidSpec))

	bad := op("!", field("text"))
	_, err = b.Query(FilterSpec{Name: "x", Where: &bad})
	assert.True(t, errors.Is(err, expr.ErrNoCommonKind), "%v", err)

	none := &Builder{}
	_, err = none.Query(FilterSpec{Name: "x", Sources: []SourceSpec{{Kind: "search", Value: "a"}}})
	assert.True(t, errors.Is(err, ErrInvalidSpec))
}

var _ rel.Registry = (*registry.Registry)(nil)

func TestRegister(t *testing.T) {
	b, reg, _ := newBuilder(t)
	gophers := op("contains", field("text"), lit("gopher"))
	specs := []FilterSpec{
		// refers forward
		{Name: "mine", Sources: []SourceSpec{{Kind: "local", Value: "gophers"}}},
		{Name: "gophers", Where: &gophers},
		{Name: "loop", Sources: []SourceSpec{{Kind: "local", Value: "loop"}}},
	}
	require.NoError(t, Register(b, reg, specs))
	assert.True(t, reg.AllGroupsPopulated())
	assert.Equal(t, 3, reg.Len())

	mine, ok := reg.Lookup("mine")
	require.True(t, ok)
	fn, err := mine.Query().BooleanEvaluator()
	require.NoError(t, err)
	assert.True(t, fn(&model.Status{User: &model.User{}, Text: "Gophers!"}))
	assert.False(t, fn(&model.Status{User: &model.User{}, Text: "crabs"}))

	// recursion is left for activation to reject
	loop, ok := reg.Lookup("loop")
	require.True(t, ok)
	_, err = loop.Query().BooleanEvaluator()
	assert.True(t, errors.Is(err, sources.ErrRecursiveFilter))

	err = Register(b, reg, []FilterSpec{{Name: "mine"}})
	assert.True(t, errors.Is(err, registry.ErrDuplicate))
}
