// internal/rules/operators.go
package rules

import (
	"strings"
)

/*
 * Operator comparison logic.
 *
 * Implements the matcher operator table with type-aware comparison rules.
 * Token operands are already coerced via Coerce() before reaching Compare().
 *
 * Matcher codes (rule JSON) -> operators:
 *   - eq/ne: equality
 *   - gt/ge/lt/le: ordering
 *   - co/nc/sw/ew: substring, prefix and suffix matching
 *   - ex/nx: existence (unary, never reach Compare)
 *
 * Comparison modes, in order:
 *   1. nil on either side: false for every operator
 *   2. both numeric: exact int64 ordering when both sides are integers,
 *      float64 ordering once either side is a float
 *   3. both bool: equality only, ordering and substring ops are false
 *   4. anything else: string fallback, both sides rendered with formatText
 *      and compared case-sensitively; ordering is lexicographic
 *
 * The string fallback keeps a string-declared token compared against a
 * numeric literal (or the reverse) from failing outright.
 */

// Operator is the semantic comparison operator of an expression node.
type Operator string

const (
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "notEquals"
	OpGreaterThan  Operator = "greaterThan"
	OpGreaterEqual Operator = "greaterEqual"
	OpLessThan     Operator = "lessThan"
	OpLessEqual    Operator = "lessEqual"
	OpContains     Operator = "contains"
	OpNotContains  Operator = "notContains"
	OpStartsWith   Operator = "startsWith"
	OpEndsWith     Operator = "endsWith"
	OpExists       Operator = "exists"
	OpNotExist     Operator = "notExist"
)

// matcherOperators maps rule JSON matcher codes to operators.
var matcherOperators = map[string]Operator{
	"eq": OpEquals,
	"ne": OpNotEquals,
	"gt": OpGreaterThan,
	"ge": OpGreaterEqual,
	"lt": OpLessThan,
	"le": OpLessEqual,
	"co": OpContains,
	"nc": OpNotContains,
	"sw": OpStartsWith,
	"ew": OpEndsWith,
	"ex": OpExists,
	"nx": OpNotExist,
}

// LookupMatcher resolves a matcher code such as "eq" to its operator.
func LookupMatcher(code string) (Operator, bool) {
	op, ok := matcherOperators[code]
	return op, ok
}

// IsUnary reports whether op takes a single operand.
func (op Operator) IsUnary() bool {
	return op == OpExists || op == OpNotExist
}

// Compare applies the operator to compare value against target.
// Unary operators are evaluated by Unary nodes and return false here.
func Compare(op Operator, value, target any) bool {
	if value == nil || target == nil {
		return false
	}

	if ia, ib, ok := asIntegers(value, target); ok {
		return compareNumbers(op, ia, ib)
	}
	if na, nb, ok := asNumbers(value, target); ok {
		return compareNumbers(op, na, nb)
	}

	ba, okA := value.(bool)
	bb, okB := target.(bool)
	if okA && okB {
		switch op {
		case OpEquals:
			return ba == bb
		case OpNotEquals:
			return ba != bb
		default:
			return false
		}
	}

	return compareStrings(op, formatText(value), formatText(target))
}

// compareNumbers applies op with numeric ordering.
// Substring operators fall back to the text form of both numbers.
func compareNumbers[T int64 | float64](op Operator, a, b T) bool {
	switch op {
	case OpEquals:
		return a == b
	case OpNotEquals:
		return a != b
	case OpGreaterThan:
		return a > b
	case OpGreaterEqual:
		return a >= b
	case OpLessThan:
		return a < b
	case OpLessEqual:
		return a <= b
	default:
		return compareStrings(op, formatText(a), formatText(b))
	}
}

// compareStrings applies op with case-sensitive string semantics.
func compareStrings(op Operator, a, b string) bool {
	switch op {
	case OpEquals:
		return a == b
	case OpNotEquals:
		return a != b
	case OpGreaterThan:
		return strings.Compare(a, b) > 0
	case OpGreaterEqual:
		return strings.Compare(a, b) >= 0
	case OpLessThan:
		return strings.Compare(a, b) < 0
	case OpLessEqual:
		return strings.Compare(a, b) <= 0
	case OpContains:
		return strings.Contains(a, b)
	case OpNotContains:
		return !strings.Contains(a, b)
	case OpStartsWith:
		return strings.HasPrefix(a, b)
	case OpEndsWith:
		return strings.HasSuffix(a, b)
	default:
		return false
	}
}

// asIntegers converts both values to int64 when neither is a float.
func asIntegers(a, b any) (int64, int64, bool) {
	ia, oka := toInt64(a)
	ib, okb := toInt64(b)
	return ia, ib, oka && okb
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
// Handles float64, int64 from JSON decoding and int/float32 from Go callers.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
