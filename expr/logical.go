package expr

import (
	"strings"

	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/value"
)

var (
	_ BooleanNode = (*And)(nil)
	_ BooleanNode = (*Or)(nil)
	_ BooleanNode = (*Not)(nil)
	_ ParentNode  = (*And)(nil)
	_ ParentNode  = (*Or)(nil)
	_ ParentNode  = (*Not)(nil)
)

// And is true if every argument is, an empty And is true.
type And struct {
	Args []Node
}

// Or is true if any argument is, an empty Or is false.
type Or struct {
	Args []Node
}

// Not negates a Boolean node.
type Not struct {
	Arg Node
}

func NewAnd(args ...Node) *And { return &And{Args: args} }
func NewOr(args ...Node) *Or   { return &Or{Args: args} }
func NewNot(arg Node) *Not     { return &Not{Arg: arg} }

func (m *And) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }
func (m *And) Children() []Node            { return m.Args }
func (m *And) ToQuery() string             { return joinQuery(m.Args, " && ", "true") }
func (m *And) Validate() error             { return validateBooleanArgs("&&", m.Args) }
func (m *And) BooleanEvaluator() (BoolFunc, error) {
	fns, err := booleanEvaluators(m.Args)
	if err != nil {
		return nil, err
	}
	switch len(fns) {
	case 0:
		return TautologyFunc, nil
	case 1:
		return fns[0], nil
	case 2:
		l, r := fns[0], fns[1]
		return func(s *model.Status) bool { return l(s) && r(s) }, nil
	}
	return func(s *model.Status) bool {
		for _, fn := range fns {
			if !fn(s) {
				return false
			}
		}
		return true
	}, nil
}
func (m *And) BooleanSQL() (string, error) { return joinSQL(m.Args, " and ", SQLTrue) }

func (m *Or) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }
func (m *Or) Children() []Node            { return m.Args }
func (m *Or) ToQuery() string             { return joinQuery(m.Args, " || ", "false") }
func (m *Or) Validate() error             { return validateBooleanArgs("||", m.Args) }
func (m *Or) BooleanEvaluator() (BoolFunc, error) {
	fns, err := booleanEvaluators(m.Args)
	if err != nil {
		return nil, err
	}
	switch len(fns) {
	case 0:
		return func(*model.Status) bool { return false }, nil
	case 1:
		return fns[0], nil
	case 2:
		l, r := fns[0], fns[1]
		return func(s *model.Status) bool { return l(s) || r(s) }, nil
	}
	return func(s *model.Status) bool {
		for _, fn := range fns {
			if fn(s) {
				return true
			}
		}
		return false
	}, nil
}
func (m *Or) BooleanSQL() (string, error) { return joinSQL(m.Args, " or ", SQLFalse) }

func (m *Not) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }
func (m *Not) Children() []Node            { return []Node{m.Arg} }
func (m *Not) ToQuery() string             { return "!" + operandQuery(m.Arg) }
func (m *Not) Validate() error             { return validateBooleanArgs("!", []Node{m.Arg}) }
func (m *Not) BooleanEvaluator() (BoolFunc, error) {
	fn, err := BooleanEvaluator(m.Arg)
	if err != nil {
		return nil, err
	}
	return func(s *model.Status) bool { return !fn(s) }, nil
}
func (m *Not) BooleanSQL() (string, error) {
	q, err := BooleanSQL(m.Arg)
	if err != nil {
		return "", err
	}
	return "not " + Parenthesize(q), nil
}

func booleanEvaluators(args []Node) ([]BoolFunc, error) {
	fns := make([]BoolFunc, 0, len(args))
	for _, a := range args {
		fn, err := BooleanEvaluator(a)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
	}
	return fns, nil
}

func joinSQL(args []Node, sep, empty string) (string, error) {
	if len(args) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		q, err := BooleanSQL(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, Parenthesize(q))
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func joinQuery(args []Node, sep, empty string) string {
	if len(args) == 0 {
		return empty
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = operandQuery(a)
	}
	return strings.Join(parts, sep)
}

func validateBooleanArgs(op string, args []Node) error {
	for _, a := range args {
		if a == nil {
			return &ValidationError{Operator: op, Query: op + " <nil>"}
		}
		if !a.SupportedTypes().Has(value.BooleanKind) {
			return &ValidationError{
				Operator: op,
				Left:     a.SupportedTypes(),
				Right:    value.NewKinds(value.BooleanKind),
				Query:    a.ToQuery(),
			}
		}
	}
	return nil
}
