package triage

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Operator is a rule comparison.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpContains     Operator = "contains"
	OpIn           Operator = "in"
	OpBetween      Operator = "between"
)

var operatorAliases = map[string]Operator{
	">":        OpGreater,
	">=":       OpGreaterEqual,
	"<":        OpLess,
	"<=":       OpLessEqual,
	"==":       OpEqual,
	"=":        OpEqual,
	"!=":       OpNotEqual,
	"<>":       OpNotEqual,
	"contains": OpContains,
	"in":       OpIn,
	"between":  OpBetween,
}

// ParseOperator normalizes an authored operator, accepting aliases and any
// case. ok is false when it is unknown. Matches itself only takes the
// canonical operators, so catalogs normalize at load time.
func ParseOperator(s string) (Operator, bool) {
	op, ok := operatorAliases[strings.ToLower(strings.TrimSpace(s))]
	return op, ok
}

// Valid reports whether o is one of the canonical operators.
func (o Operator) Valid() bool {
	switch o.canonical() {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual, OpNotEqual, OpContains, OpIn, OpBetween:
		return true
	}
	return false
}

func (o Operator) canonical() Operator {
	return Operator(strings.TrimSpace(string(o)))
}

// Matches evaluates one comparison of a field value against an operand.
// It never fails: values that cannot be compared, empty operands and
// unknown or non-canonical operators simply do not match.
func Matches(value any, op Operator, operand any) bool {
	canon := op.canonical()

	switch canon {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual:
		v, ok := toNumber(value)
		if !ok {
			return false
		}
		o, ok := toNumber(operand)
		if !ok {
			return false
		}
		switch canon {
		case OpGreater:
			return v > o
		case OpGreaterEqual:
			return v >= o
		case OpLess:
			return v < o
		default:
			return v <= o
		}

	case OpEqual:
		return strings.EqualFold(toText(value), toText(operand))

	case OpNotEqual:
		return !strings.EqualFold(toText(value), toText(operand))

	case OpContains:
		needle := strings.ToLower(toText(operand))
		if needle == "" {
			return false
		}
		return strings.Contains(strings.ToLower(toText(value)), needle)

	case OpIn:
		v := toText(value)
		for _, item := range toList(operand) {
			if strings.EqualFold(v, item) {
				return true
			}
		}
		return false

	case OpBetween:
		bounds := toList(operand)
		if len(bounds) != 2 {
			return false
		}
		lo, ok := toNumber(bounds[0])
		if !ok {
			return false
		}
		hi, ok := toNumber(bounds[1])
		if !ok {
			return false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		v, ok := toNumber(value)
		if !ok {
			return false
		}
		return v >= lo && v <= hi
	}
	return false
}

// toNumber coerces numbers and numeric strings. Blanks, booleans, NaN and
// infinities fail.
func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		v = strings.TrimSpace(x)
		if v == "" {
			return 0, false
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toText renders a scalar as a trimmed string; nil and non-scalars are "".
func toText(v any) string {
	if v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// toList splits a delimited operand ("a,b|c;d") or takes a list operand as is.
// Items are trimmed and empty items dropped.
func toList(operand any) []string {
	var items []string
	switch o := operand.(type) {
	case []any:
		for _, it := range o {
			items = append(items, toText(it))
		}
	case []string:
		for _, it := range o {
			items = append(items, strings.TrimSpace(it))
		}
	default:
		items = strings.FieldsFunc(toText(operand), func(r rune) bool {
			return r == ',' || r == '|' || r == ';'
		})
	}

	out := items[:0]
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
