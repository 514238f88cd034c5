// internal/rules/expression.go
package rules

import (
	"fmt"
	"strings"
)

/*
 * Expression tree.
 *
 * Three node kinds implement Evaluable:
 *   - Comparison: left operand, operator, right operand
 *   - Unary: exists / notExist over a single operand
 *   - Logical: and / or over an ordered, non-empty list of nodes
 *
 * Evaluation resolves operands lazily against the Context on every call.
 * Nothing is cached between evaluations, so historical counts are re-queried
 * and token values follow the current event.
 *
 * Short-circuit semantics: and stops at the first false child, or stops at
 * the first true child. Children are evaluated in document order; nodes are
 * never reordered.
 */

// Evaluable is a compiled condition node.
type Evaluable interface {
	Evaluate(ctx Context) bool
	fmt.Stringer
}

// LogicalOperator joins the children of a Logical node.
type LogicalOperator string

const (
	LogicAnd LogicalOperator = "and"
	LogicOr  LogicalOperator = "or"
)

// ParseLogic maps a group logic string to a LogicalOperator, case-insensitively.
func ParseLogic(s string) (LogicalOperator, bool) {
	switch LogicalOperator(strings.ToLower(s)) {
	case LogicAnd:
		return LogicAnd, true
	case LogicOr:
		return LogicOr, true
	default:
		return "", false
	}
}

// Comparison applies a binary operator to two operands.
type Comparison struct {
	Left     Operand
	Operator Operator
	Right    Operand
}

// Evaluate implements Evaluable. Unresolved operands evaluate false.
func (c *Comparison) Evaluate(ctx Context) bool {
	left, ok := c.Left.Resolve(ctx)
	if !ok {
		return false
	}
	right, ok := c.Right.Resolve(ctx)
	if !ok {
		return false
	}
	return Compare(c.Operator, left, right)
}

func (c *Comparison) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Left, c.Operator, c.Right)
}

// Unary checks whether its operand resolves to a non-nil value.
type Unary struct {
	Operand  Operand
	Operator Operator
}

// Evaluate implements Evaluable.
func (u *Unary) Evaluate(ctx Context) bool {
	v, ok := u.Operand.Resolve(ctx)
	exists := ok && v != nil
	if u.Operator == OpNotExist {
		return !exists
	}
	return exists
}

func (u *Unary) String() string {
	return fmt.Sprintf("(%s %s)", u.Operator, u.Operand)
}

// Logical combines child nodes with and/or.
type Logical struct {
	Operator LogicalOperator
	Operands []Evaluable
}

// NewLogical validates the operator and requires at least one operand.
func NewLogical(op LogicalOperator, operands []Evaluable) (*Logical, error) {
	if op != LogicAnd && op != LogicOr {
		return nil, fmt.Errorf("unsupported logical operator %q", op)
	}
	if len(operands) == 0 {
		return nil, fmt.Errorf("logical %s requires at least one operand", op)
	}
	return &Logical{Operator: op, Operands: operands}, nil
}

// Evaluate implements Evaluable.
func (l *Logical) Evaluate(ctx Context) bool {
	switch l.Operator {
	case LogicAnd:
		for _, child := range l.Operands {
			if !child.Evaluate(ctx) {
				return false
			}
		}
		return len(l.Operands) > 0
	case LogicOr:
		for _, child := range l.Operands {
			if child.Evaluate(ctx) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (l *Logical) String() string {
	parts := make([]string, len(l.Operands))
	for i, child := range l.Operands {
		parts[i] = child.String()
	}
	return "(" + strings.Join(parts, " "+string(l.Operator)+" ") + ")"
}
