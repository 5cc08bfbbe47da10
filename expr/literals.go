package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/lytics/datemath"

	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/value"
)

var (
	_ BooleanNode = (*BoolLiteral)(nil)
	_ NumericNode = (*NumberLiteral)(nil)
	_ StringNode  = (*StringLiteral)(nil)
	_ SetNode     = (*SetLiteral)(nil)
	_ NumericNode = (*DateLiteral)(nil)

	// Tautology accepts everything, Contradiction nothing.
	Tautology     = &BoolLiteral{v: true}
	Contradiction = &BoolLiteral{v: false}

	// TautologyFunc is the predicate used when no filter is configured.
	TautologyFunc BoolFunc = func(*model.Status) bool { return true }
)

// BoolLiteral is a constant true/false.
type BoolLiteral struct {
	v bool
}

func NewBoolLiteral(v bool) *BoolLiteral {
	if v {
		return Tautology
	}
	return Contradiction
}

func (m *BoolLiteral) Val() bool                   { return m.v }
func (m *BoolLiteral) SupportedTypes() value.Kinds { return value.NewKinds(value.BooleanKind) }
func (m *BoolLiteral) ToQuery() string             { return strconv.FormatBool(m.v) }
func (m *BoolLiteral) BooleanEvaluator() (BoolFunc, error) {
	v := m.v
	return func(*model.Status) bool { return v }, nil
}
func (m *BoolLiteral) BooleanSQL() (string, error) {
	if m.v {
		return SQLTrue, nil
	}
	return SQLFalse, nil
}

// NumberLiteral is a constant integer.
type NumberLiteral struct {
	v int64
}

func NewNumberLiteral(v int64) *NumberLiteral { return &NumberLiteral{v: v} }

func (m *NumberLiteral) Val() int64                  { return m.v }
func (m *NumberLiteral) SupportedTypes() value.Kinds { return value.NewKinds(value.NumericKind) }
func (m *NumberLiteral) ToQuery() string             { return strconv.FormatInt(m.v, 10) }
func (m *NumberLiteral) NumericEvaluator() (NumericFunc, error) {
	v := m.v
	return func(*model.Status) int64 { return v }, nil
}
func (m *NumberLiteral) NumericSQL() (string, error) { return strconv.FormatInt(m.v, 10), nil }

// StringLiteral is a constant string.
type StringLiteral struct {
	v string
}

func NewStringLiteral(v string) *StringLiteral { return &StringLiteral{v: v} }

func (m *StringLiteral) Val() string                 { return m.v }
func (m *StringLiteral) SupportedTypes() value.Kinds { return value.NewKinds(value.StringKind) }
func (m *StringLiteral) ToQuery() string             { return strconv.Quote(m.v) }
func (m *StringLiteral) StringEvaluator() (StringFunc, error) {
	v := m.v
	return func(*model.Status) (string, bool) { return v, true }, nil
}
func (m *StringLiteral) StringSQL() (string, error) { return QuoteString(m.v), nil }

// SetLiteral is a constant set of identifiers, ie (1, 2, 3)
type SetLiteral struct {
	ids value.IDs
}

func NewSetLiteral(ids ...int64) *SetLiteral { return &SetLiteral{ids: value.NewIDs(ids...)} }

func (m *SetLiteral) Val() value.IDs              { return m.ids }
func (m *SetLiteral) SupportedTypes() value.Kinds { return value.NewKinds(value.SetKind) }
func (m *SetLiteral) ToQuery() string {
	return "(" + strings.ReplaceAll(m.ids.ToString(), ",", ", ") + ")"
}
func (m *SetLiteral) SetEvaluator() (SetFunc, error) {
	ids := m.ids
	return func(*model.Status) value.IDSet { return ids }, nil
}

// SetSQL is a single select so it can take part in INTERSECT without
// compound-select precedence issues.
func (m *SetLiteral) SetSQL() (string, error) {
	by, err := json.Marshal(m.ids)
	if err != nil {
		return "", err
	}
	if len(m.ids) == 0 {
		by = []byte("[]")
	}
	return "(select value from json_each(" + QuoteString(string(by)) + "))", nil
}

// DateLiteral is a point in time as a Numeric of unix seconds. Relative
// expressions (now-1d, now/d) are resolved once against the anchor time at
// construction so both backends see the same boundary.
type DateLiteral struct {
	text string
	ts   time.Time
}

// NewDate parses relative datemath (now-1h) or an absolute date in any
// common layout, zoneless dates are UTC.
func NewDate(text string, anchor time.Time) (*DateLiteral, error) {
	var (
		ts  time.Time
		err error
	)
	if strings.HasPrefix(strings.ToLower(text), "now") {
		ts, err = datemath.EvalAnchor(anchor, text)
	} else {
		ts, err = dateparse.ParseIn(text, time.UTC)
	}
	if err != nil {
		return nil, fmt.Errorf("expr: invalid date %q: %w", text, err)
	}
	return &DateLiteral{text: text, ts: ts}, nil
}

func (m *DateLiteral) Time() time.Time             { return m.ts }
func (m *DateLiteral) SupportedTypes() value.Kinds { return value.NewKinds(value.NumericKind) }
func (m *DateLiteral) ToQuery() string             { return "date(" + strconv.Quote(m.text) + ")" }
func (m *DateLiteral) NumericEvaluator() (NumericFunc, error) {
	v := m.ts.Unix()
	return func(*model.Status) int64 { return v }, nil
}
func (m *DateLiteral) NumericSQL() (string, error) { return strconv.FormatInt(m.ts.Unix(), 10), nil }
