package optimization_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IroiKanta/StarryEyes/expr"
	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/optimization"
)

func TestOptimizeBooleanNodes(t *testing.T) {
	inner := expr.NewOr(
		expr.Contains(expr.StatusText, expr.NewStringLiteral("go")),
		expr.StatusIsRetweet,
	)
	node := expr.NewAnd(
		expr.NewNot(inner),
		expr.ContainedBy(expr.User, expr.NewSetLiteral(1, 2, 3)),
		expr.NewNot(expr.Tautology),
	)
	res, err := optimization.OptimizeBooleanNodes(node)
	require.NoError(t, err)

	require.IsType(t, &expr.And{}, res)
	and := res.(*expr.And)
	assert.Equal(t, 3, len(and.Args))
	assert.Equal(t, "!true", and.Args[0].ToQuery())
	assert.Equal(t, "user in (1, 2, 3)", and.Args[1].ToQuery())
	require.IsType(t, &expr.Not{}, and.Args[2])

	or := and.Args[2].(*expr.Not).Arg.(*expr.Or)
	assert.Equal(t, "is_retweet", or.Args[0].ToQuery())
	assert.Equal(t, `text contains "go"`, or.Args[1].ToQuery())

	// input is untouched
	assert.Equal(t, `!((text contains "go") || is_retweet)`, node.Args[0].ToQuery())
	assert.NotSame(t, node, res)

	// same meaning
	for _, s := range []*model.Status{
		{ID: 1, User: &model.User{ID: 1}, Text: "let's go"},
		{ID: 2, User: &model.User{ID: 9}, Text: "nothing"},
	} {
		a, err := expr.BooleanEvaluator(node)
		require.NoError(t, err)
		b, err := expr.BooleanEvaluator(res)
		require.NoError(t, err)
		assert.Equal(t, a(s), b(s))
	}
}

func TestOptimizeLeaves(t *testing.T) {
	res, err := optimization.OptimizeBooleanNodes(expr.StatusIsRetweet)
	require.NoError(t, err)
	assert.Same(t, expr.StatusIsRetweet, res)
}
