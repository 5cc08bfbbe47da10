// Package expr defines filter expression nodes. Every node compiles, for
// each kind it supports, to a predicate over a status and to an SQL fragment
// usable inside a WHERE clause. Both forms must agree for every status the
// store can represent.
package expr

import (
	"errors"
	"fmt"

	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/value"
)

var (
	// ErrUnsupportedKind is the panic cause when an accessor is requested for a
	// kind the node does not support. It signals a malformed tree.
	ErrUnsupportedKind = errors.New("expr: unsupported kind")
	// ErrNoCommonKind is returned by Validate when an operator cannot find a
	// dispatch rule for its operands.
	ErrNoCommonKind = errors.New("expr: no compatible kind between operands")

	// MaxDepth guards tree walks against pathological nesting
	MaxDepth = 1000
	// ErrMaxDepth is returned if a walk exceeds MaxDepth
	ErrMaxDepth = errors.New("expr: hit max depth on expression tree")
)

type (
	// BoolFunc is a compiled Boolean predicate.
	BoolFunc func(s *model.Status) bool
	// NumericFunc evaluates a Numeric node. Numeric values are total.
	NumericFunc func(s *model.Status) int64
	// StringFunc evaluates a String node, ok is false if the value is absent
	// which the SQL side sees as NULL.
	StringFunc func(s *model.Status) (string, bool)
	// SetFunc evaluates a Set node.
	SetFunc func(s *model.Status) value.IDSet

	// Node is the base of every expression node.
	Node interface {
		// SupportedTypes is fixed at construction and never empty.
		SupportedTypes() value.Kinds
		// ToQuery is the canonical, human readable text form.
		ToQuery() string
	}

	// BooleanNode is implemented by nodes supporting value.BooleanKind.
	BooleanNode interface {
		Node
		BooleanEvaluator() (BoolFunc, error)
		BooleanSQL() (string, error)
	}
	// NumericNode is implemented by nodes supporting value.NumericKind.
	NumericNode interface {
		Node
		NumericEvaluator() (NumericFunc, error)
		NumericSQL() (string, error)
	}
	// StringNode is implemented by nodes supporting value.StringKind.
	StringNode interface {
		Node
		StringEvaluator() (StringFunc, error)
		StringSQL() (string, error)
	}
	// SetNode is implemented by nodes supporting value.SetKind.
	SetNode interface {
		Node
		SetEvaluator() (SetFunc, error)
		SetSQL() (string, error)
	}

	// ParentNode exposes child nodes for tree walks.
	ParentNode interface {
		Node
		Children() []Node
	}

	// NullableNode is implemented by String nodes whose value may be absent.
	NullableNode interface {
		Nullable() bool
	}

	// Validator is implemented by nodes with structural rules, ie operators
	// that need a compatible kind between operands.
	Validator interface {
		Validate() error
	}
)

// UnsupportedKindError is the panic value for a malformed tree.
type UnsupportedKindError struct {
	Query     string
	Kind      value.Kind
	Supported value.Kinds
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("expr: %s accessor requested on %q which supports %s", e.Kind, e.Query, e.Supported)
}
func (e *UnsupportedKindError) Unwrap() error { return ErrUnsupportedKind }

// ValidationError describes an operator whose operands have no dispatch rule.
type ValidationError struct {
	Operator string
	Left     value.Kinds
	Right    value.Kinds
	Query    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("expr: %s cannot compare %s with %s in %q", e.Operator, e.Left, e.Right, e.Query)
}
func (e *ValidationError) Unwrap() error { return ErrNoCommonKind }

func unsupported(n Node, k value.Kind) *UnsupportedKindError {
	return &UnsupportedKindError{Query: n.ToQuery(), Kind: k, Supported: n.SupportedTypes()}
}

func asBoolean(n Node) BooleanNode {
	bn, ok := n.(BooleanNode)
	if !ok || !n.SupportedTypes().Has(value.BooleanKind) {
		panic(unsupported(n, value.BooleanKind))
	}
	return bn
}
func asNumeric(n Node) NumericNode {
	nn, ok := n.(NumericNode)
	if !ok || !n.SupportedTypes().Has(value.NumericKind) {
		panic(unsupported(n, value.NumericKind))
	}
	return nn
}
func asString(n Node) StringNode {
	sn, ok := n.(StringNode)
	if !ok || !n.SupportedTypes().Has(value.StringKind) {
		panic(unsupported(n, value.StringKind))
	}
	return sn
}
func asSet(n Node) SetNode {
	sn, ok := n.(SetNode)
	if !ok || !n.SupportedTypes().Has(value.SetKind) {
		panic(unsupported(n, value.SetKind))
	}
	return sn
}

// BooleanEvaluator compiles n as a predicate. It panics with an
// *UnsupportedKindError if n does not support value.BooleanKind.
func BooleanEvaluator(n Node) (BoolFunc, error) { return asBoolean(n).BooleanEvaluator() }

// BooleanSQL compiles n as a WHERE fragment, see BooleanEvaluator.
func BooleanSQL(n Node) (string, error) { return asBoolean(n).BooleanSQL() }

func NumericEvaluator(n Node) (NumericFunc, error) { return asNumeric(n).NumericEvaluator() }
func NumericSQL(n Node) (string, error)            { return asNumeric(n).NumericSQL() }
func StringEvaluator(n Node) (StringFunc, error)   { return asString(n).StringEvaluator() }
func StringSQL(n Node) (string, error)             { return asString(n).StringSQL() }
func SetEvaluator(n Node) (SetFunc, error)         { return asSet(n).SetEvaluator() }
func SetSQL(n Node) (string, error)                { return asSet(n).SetSQL() }

// Nullable reports whether the String value of n may be absent.
func Nullable(n Node) bool {
	nn, ok := n.(NullableNode)
	return ok && nn.Nullable()
}

// Validate walks the tree checking every operator has a dispatch rule for
// its operands. Trees built from user input must pass Validate before they
// are compiled; compiling an invalid operator fails with the same error.
func Validate(n Node) error {
	return validateDepth(n, 0)
}

func validateDepth(n Node, depth int) error {
	if depth > MaxDepth {
		return ErrMaxDepth
	}
	if n == nil {
		return nil
	}
	if n.SupportedTypes().Empty() {
		return fmt.Errorf("expr: node %q supports no kinds", n.ToQuery())
	}
	if v, ok := n.(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if p, ok := n.(ParentNode); ok {
		for _, c := range p.Children() {
			if err := validateDepth(c, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// CountNodes is the number of nodes in the tree rooted at n.
func CountNodes(n Node) int {
	if n == nil {
		return 0
	}
	ct := 1
	if p, ok := n.(ParentNode); ok {
		for _, c := range p.Children() {
			ct += CountNodes(c)
		}
	}
	return ct
}
