package expr

import (
	"fmt"
	"strings"

	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/value"
)

// Operator identifies a binary operator.
type Operator uint8

const (
	OpEquals Operator = iota
	OpNotEquals
	OpLessThan
	OpLessOrEqual
	OpGreaterThan
	OpGreaterOrEqual
	OpContains
	OpContainedBy
	OpStartsWith
	OpEndsWith
)

var opToStr = map[Operator]string{
	OpEquals:         "==",
	OpNotEquals:      "!=",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
	OpContains:       "contains",
	OpContainedBy:    "in",
	OpStartsWith:     "startswith",
	OpEndsWith:       "endswith",
}

var opToSQL = map[Operator]string{
	OpEquals:         "=",
	OpNotEquals:      "<>",
	OpLessThan:       "<",
	OpLessOrEqual:    "<=",
	OpGreaterThan:    ">",
	OpGreaterOrEqual: ">=",
}

func (o Operator) String() string {
	if s, ok := opToStr[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// OperatorFromString maps the canonical operator text back, with a few
// aliases (=, <>, in, containedby).
func OperatorFromString(s string) (Operator, bool) {
	switch strings.ToLower(s) {
	case "==", "=":
		return OpEquals, true
	case "!=", "<>":
		return OpNotEquals, true
	case "<":
		return OpLessThan, true
	case "<=":
		return OpLessOrEqual, true
	case ">":
		return OpGreaterThan, true
	case ">=":
		return OpGreaterOrEqual, true
	case "contains":
		return OpContains, true
	case "in", "containedby":
		return OpContainedBy, true
	case "startswith":
		return OpStartsWith, true
	case "endswith":
		return OpEndsWith, true
	}
	return 0, false
}

// Comparison selects how strings are compared.
type Comparison uint8

const (
	// IgnoreCase folds ASCII letters on both sides, the default.
	IgnoreCase Comparison = iota
	CaseSensitive
)

// Option configures a binary operator.
type Option func(*Binary)

// WithComparison sets string case sensitivity.
func WithComparison(c Comparison) Option {
	return func(b *Binary) { b.Comparison = c }
}

// strategy is how a binary operator compares its operands. It is chosen once
// from the operands' supported kinds and drives both the predicate and the
// SQL so the two cannot disagree.
type strategy uint8

const (
	noStrategy strategy = iota
	compareBoolean
	compareNumeric
	compareString
	// Right is a member of the Left set
	memberOfLeft
	// Left is a member of the Right set
	memberOfRight
	// Left and Right sets share at least one id
	intersect
)

var (
	_ BooleanNode = (*Binary)(nil)
	_ ParentNode  = (*Binary)(nil)
	_ Validator   = (*Binary)(nil)
)

// Binary is a Boolean producing operator over two operands it owns.
type Binary struct {
	Op         Operator
	Left       Node
	Right      Node
	Comparison Comparison
}

func NewBinary(op Operator, l, r Node, opts ...Option) *Binary {
	b := &Binary{Op: op, Left: l, Right: r}
	for _, o := range opts {
		o(b)
	}
	return b
}

func Equals(l, r Node, opts ...Option) *Binary      { return NewBinary(OpEquals, l, r, opts...) }
func NotEquals(l, r Node, opts ...Option) *Binary   { return NewBinary(OpNotEquals, l, r, opts...) }
func LessThan(l, r Node) *Binary                    { return NewBinary(OpLessThan, l, r) }
func LessOrEqual(l, r Node) *Binary                 { return NewBinary(OpLessOrEqual, l, r) }
func GreaterThan(l, r Node) *Binary                 { return NewBinary(OpGreaterThan, l, r) }
func GreaterOrEqual(l, r Node) *Binary              { return NewBinary(OpGreaterOrEqual, l, r) }
func Contains(l, r Node, opts ...Option) *Binary    { return NewBinary(OpContains, l, r, opts...) }
func ContainedBy(l, r Node, opts ...Option) *Binary { return NewBinary(OpContainedBy, l, r, opts...) }
func StartsWith(l, r Node, opts ...Option) *Binary  { return NewBinary(OpStartsWith, l, r, opts...) }
func EndsWith(l, r Node, opts ...Option) *Binary    { return NewBinary(OpEndsWith, l, r, opts...) }

func (m *Binary) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }
func (m *Binary) Children() []Node            { return []Node{m.Left, m.Right} }
func (m *Binary) ToQuery() string {
	return operandQuery(m.Left) + " " + m.Op.String() + " " + operandQuery(m.Right)
}

func (m *Binary) strategy() strategy {
	lk, rk := m.Left.SupportedTypes(), m.Right.SupportedTypes()
	both := func(k value.Kind) bool { return lk.Has(k) && rk.Has(k) }

	switch m.Op {
	case OpEquals, OpNotEquals:
		// string first unless both sides are inherently numeric
		switch {
		case both(value.StringKind) && !both(value.NumericKind):
			return compareString
		case both(value.NumericKind):
			return compareNumeric
		case both(value.BooleanKind):
			return compareBoolean
		}
	case OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		if both(value.NumericKind) {
			return compareNumeric
		}
	case OpStartsWith, OpEndsWith:
		if both(value.StringKind) {
			return compareString
		}
	case OpContains:
		asString := !lk.Has(value.SetKind) ||
			(lk.Has(value.StringKind) && !rk.Has(value.SetKind) && !rk.Has(value.NumericKind))
		switch {
		case asString:
			if both(value.StringKind) {
				return compareString
			}
		case rk.Has(value.NumericKind):
			return memberOfLeft
		case rk.Has(value.SetKind):
			return intersect
		}
	case OpContainedBy:
		if !rk.Has(value.SetKind) {
			return noStrategy
		}
		switch {
		case lk.Has(value.NumericKind):
			return memberOfRight
		case lk.Has(value.SetKind):
			return intersect
		}
	}
	return noStrategy
}

func (m *Binary) Validate() error {
	if m.Left == nil || m.Right == nil {
		return fmt.Errorf("expr: %s requires two operands", m.Op)
	}
	if m.strategy() == noStrategy {
		return m.invalid()
	}
	return nil
}

func (m *Binary) invalid() *ValidationError {
	return &ValidationError{
		Operator: m.Op.String(),
		Left:     m.Left.SupportedTypes(),
		Right:    m.Right.SupportedTypes(),
		Query:    m.ToQuery(),
	}
}

func (m *Binary) fold() func(string) string {
	if m.Comparison == CaseSensitive {
		return func(s string) string { return s }
	}
	return lowerASCII
}

func (m *Binary) BooleanEvaluator() (BoolFunc, error) {
	switch m.strategy() {
	case compareBoolean:
		lf, err := BooleanEvaluator(m.Left)
		if err != nil {
			return nil, err
		}
		rf, err := BooleanEvaluator(m.Right)
		if err != nil {
			return nil, err
		}
		if m.Op == OpNotEquals {
			return func(s *model.Status) bool { return lf(s) != rf(s) }, nil
		}
		return func(s *model.Status) bool { return lf(s) == rf(s) }, nil

	case compareNumeric:
		lf, err := NumericEvaluator(m.Left)
		if err != nil {
			return nil, err
		}
		rf, err := NumericEvaluator(m.Right)
		if err != nil {
			return nil, err
		}
		cmp := numericCompare(m.Op)
		return func(s *model.Status) bool { return cmp(lf(s), rf(s)) }, nil

	case compareString:
		lf, err := StringEvaluator(m.Left)
		if err != nil {
			return nil, err
		}
		rf, err := StringEvaluator(m.Right)
		if err != nil {
			return nil, err
		}
		cmp := stringCompare(m.Op)
		fold := m.fold()
		return func(s *model.Status) bool {
			l, lok := lf(s)
			r, rok := rf(s)
			if !lok || !rok {
				return false
			}
			return cmp(fold(l), fold(r))
		}, nil

	case memberOfLeft:
		set, err := SetEvaluator(m.Left)
		if err != nil {
			return nil, err
		}
		num, err := NumericEvaluator(m.Right)
		if err != nil {
			return nil, err
		}
		return func(s *model.Status) bool { return set(s).Contains(num(s)) }, nil

	case memberOfRight:
		num, err := NumericEvaluator(m.Left)
		if err != nil {
			return nil, err
		}
		set, err := SetEvaluator(m.Right)
		if err != nil {
			return nil, err
		}
		return func(s *model.Status) bool { return set(s).Contains(num(s)) }, nil

	case intersect:
		lf, err := SetEvaluator(m.Left)
		if err != nil {
			return nil, err
		}
		rf, err := SetEvaluator(m.Right)
		if err != nil {
			return nil, err
		}
		return func(s *model.Status) bool { return value.Intersects(lf(s), rf(s)) }, nil
	}
	return nil, m.invalid()
}

func (m *Binary) BooleanSQL() (string, error) {
	switch m.strategy() {
	case compareBoolean:
		l, err := BooleanSQL(m.Left)
		if err != nil {
			return "", err
		}
		r, err := BooleanSQL(m.Right)
		if err != nil {
			return "", err
		}
		return "(" + Parenthesize(l) + " " + opToSQL[m.Op] + " " + Parenthesize(r) + ")", nil

	case compareNumeric:
		l, err := NumericSQL(m.Left)
		if err != nil {
			return "", err
		}
		r, err := NumericSQL(m.Right)
		if err != nil {
			return "", err
		}
		return "(" + l + " " + opToSQL[m.Op] + " " + r + ")", nil

	case compareString:
		q, err := m.stringSQL()
		if err != nil {
			return "", err
		}
		if Nullable(m.Left) || Nullable(m.Right) {
			// NULL operands compare false like the predicate does, also under not()
			return Coalesce(q, false), nil
		}
		return q, nil

	case memberOfLeft:
		set, err := SetSQL(m.Left)
		if err != nil {
			return "", err
		}
		num, err := NumericSQL(m.Right)
		if err != nil {
			return "", err
		}
		return "(" + num + " IN " + Parenthesize(set) + ")", nil

	case memberOfRight:
		num, err := NumericSQL(m.Left)
		if err != nil {
			return "", err
		}
		set, err := SetSQL(m.Right)
		if err != nil {
			return "", err
		}
		return "(" + num + " IN " + Parenthesize(set) + ")", nil

	case intersect:
		l, err := SetSQL(m.Left)
		if err != nil {
			return "", err
		}
		r, err := SetSQL(m.Right)
		if err != nil {
			return "", err
		}
		return "exists (" + Unparenthesize(l) + " intersect " + Unparenthesize(r) + ")", nil
	}
	return "", m.invalid()
}

func (m *Binary) stringSQL() (string, error) {
	l, err := StringSQL(m.Left)
	if err != nil {
		return "", err
	}
	ignoreCase := m.Comparison == IgnoreCase

	switch m.Op {
	case OpEquals, OpNotEquals:
		r, err := StringSQL(m.Right)
		if err != nil {
			return "", err
		}
		if ignoreCase {
			l, r = "LOWER("+l+")", "LOWER("+r+")"
		}
		return "(" + l + " " + opToSQL[m.Op] + " " + r + ")", nil
	}

	var prefix, suffix string
	switch m.Op {
	case OpContains:
		prefix, suffix = "%", "%"
	case OpStartsWith:
		suffix = "%"
	case OpEndsWith:
		prefix = "%"
	}

	var pattern string
	if lit, ok := m.Right.(*StringLiteral); ok {
		pattern = QuoteString(prefix + EscapeLike(lit.Val()) + suffix)
	} else {
		r, err := StringSQL(m.Right)
		if err != nil {
			return "", err
		}
		pattern = escapeLikeSQL(r)
		if prefix != "" {
			pattern = QuoteString(prefix) + " || " + pattern
		}
		if suffix != "" {
			pattern = pattern + " || " + QuoteString(suffix)
		}
	}
	if ignoreCase {
		return "(LOWER(" + l + ") LIKE LOWER(" + pattern + ") escape '\\')", nil
	}
	return "(" + l + " LIKE " + pattern + " escape '\\')", nil
}

func numericCompare(op Operator) func(l, r int64) bool {
	switch op {
	case OpEquals:
		return func(l, r int64) bool { return l == r }
	case OpNotEquals:
		return func(l, r int64) bool { return l != r }
	case OpLessThan:
		return func(l, r int64) bool { return l < r }
	case OpLessOrEqual:
		return func(l, r int64) bool { return l <= r }
	case OpGreaterThan:
		return func(l, r int64) bool { return l > r }
	case OpGreaterOrEqual:
		return func(l, r int64) bool { return l >= r }
	}
	panic("expr: no numeric comparison for " + op.String())
}

func stringCompare(op Operator) func(l, r string) bool {
	switch op {
	case OpEquals:
		return func(l, r string) bool { return l == r }
	case OpNotEquals:
		return func(l, r string) bool { return l != r }
	case OpContains:
		return strings.Contains
	case OpStartsWith:
		return strings.HasPrefix
	case OpEndsWith:
		return strings.HasSuffix
	}
	panic("expr: no string comparison for " + op.String())
}

// operandQuery parenthesizes composite operands in text form.
func operandQuery(n Node) string {
	if n == nil {
		return "<nil>"
	}
	switch n.(type) {
	case *Binary, *And, *Or:
		return "(" + n.ToQuery() + ")"
	}
	return n.ToQuery()
}
