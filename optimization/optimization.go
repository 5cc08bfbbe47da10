// Package optimization rewrites expression trees for faster predicate
// evaluation without changing their meaning.
package optimization

import (
	"sort"

	"github.com/IroiKanta/StarryEyes/expr"
)

type nodeWithNumberOfChildren struct {
	numberOfChildren int
	node             expr.Node
}

// OptimizeBooleanNodes sorts the arguments of And/Or nodes by subtree size so
// cheap checks short circuit before expensive ones. It returns a copy of the
// connective nodes in order not to violate the immutability of expression
// trees, leaves are shared.
func OptimizeBooleanNodes(arg expr.Node) (expr.Node, error) {
	n, _, err := optimizeBooleanNodesDepth(arg, 0)
	return n, err
}

func optimizeBooleanNodesDepth(arg expr.Node, depth int) (expr.Node, int, error) {
	if depth > expr.MaxDepth {
		return nil, 0, expr.ErrMaxDepth
	}
	switch n := arg.(type) {
	case *expr.And:
		args, size, err := sortArgs(n.Args, depth)
		if err != nil {
			return nil, 0, err
		}
		return &expr.And{Args: args}, size, nil
	case *expr.Or:
		args, size, err := sortArgs(n.Args, depth)
		if err != nil {
			return nil, 0, err
		}
		return &expr.Or{Args: args}, size, nil
	case *expr.Not:
		child, size, err := optimizeBooleanNodesDepth(n.Arg, depth+1)
		if err != nil {
			return nil, 0, err
		}
		return &expr.Not{Arg: child}, size + 1, nil
	case *expr.Binary:
		left, ls, err := optimizeBooleanNodesDepth(n.Left, depth+1)
		if err != nil {
			return nil, 0, err
		}
		right, rs, err := optimizeBooleanNodesDepth(n.Right, depth+1)
		if err != nil {
			return nil, 0, err
		}
		cp := *n
		cp.Left, cp.Right = left, right
		return &cp, ls + rs + 1, nil
	}
	return arg, expr.CountNodes(arg), nil
}

func sortArgs(args []expr.Node, depth int) ([]expr.Node, int, error) {
	result := 1
	nodes := make([]nodeWithNumberOfChildren, len(args))
	for i, narg := range args {
		optimized, subTreeResult, err := optimizeBooleanNodesDepth(narg, depth+1)
		if err != nil {
			return nil, 0, err
		}
		result += subTreeResult
		nodes[i] = nodeWithNumberOfChildren{
			numberOfChildren: subTreeResult,
			node:             optimized,
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].numberOfChildren < nodes[j].numberOfChildren
	})
	out := make([]expr.Node, len(nodes))
	for i, node := range nodes {
		out[i] = node.node
	}
	return out, result, nil
}
