package rules

import (
	"strings"
	"testing"

	"github.com/solatis/launchrules/internal/types"
)

// countingNode records how many times it was evaluated.
type countingNode struct {
	result bool
	calls  int
}

func (n *countingNode) Evaluate(Context) bool {
	n.calls++
	return n.result
}

func (n *countingNode) String() string { return "counting" }

func TestNewLogical(t *testing.T) {
	if _, err := NewLogical(LogicAnd, nil); err == nil {
		t.Error("NewLogical(and, nil) error = nil, want error for empty operand list")
	}
	if _, err := NewLogical(LogicalOperator("xor"), []Evaluable{&countingNode{}}); err == nil {
		t.Error("NewLogical(xor) error = nil, want unsupported operator error")
	}
	l, err := NewLogical(LogicOr, []Evaluable{&countingNode{}})
	if err != nil || l.Operator != LogicOr || len(l.Operands) != 1 {
		t.Errorf("NewLogical(or, 1) = %+v, %v", l, err)
	}
}

func TestParseLogic(t *testing.T) {
	tests := []struct {
		in   string
		want LogicalOperator
		ok   bool
	}{
		{"and", LogicAnd, true},
		{"AND", LogicAnd, true},
		{"Or", LogicOr, true},
		{"xor", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseLogic(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLogic(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLogicalShortCircuit(t *testing.T) {
	t.Run("and stops at first false", func(t *testing.T) {
		first, second, third := &countingNode{result: true}, &countingNode{result: false}, &countingNode{result: true}
		l, _ := NewLogical(LogicAnd, []Evaluable{first, second, third})
		if l.Evaluate(ctxWith(nil)) {
			t.Error("Evaluate() = true, want false")
		}
		if first.calls != 1 || second.calls != 1 || third.calls != 0 {
			t.Errorf("calls = %d/%d/%d, want 1/1/0", first.calls, second.calls, third.calls)
		}
	})

	t.Run("or stops at first true", func(t *testing.T) {
		first, second, third := &countingNode{result: false}, &countingNode{result: true}, &countingNode{result: true}
		l, _ := NewLogical(LogicOr, []Evaluable{first, second, third})
		if !l.Evaluate(ctxWith(nil)) {
			t.Error("Evaluate() = false, want true")
		}
		if first.calls != 1 || second.calls != 1 || third.calls != 0 {
			t.Errorf("calls = %d/%d/%d, want 1/1/0", first.calls, second.calls, third.calls)
		}
	})

	t.Run("or all false", func(t *testing.T) {
		l, _ := NewLogical(LogicOr, []Evaluable{&countingNode{}, &countingNode{}})
		if l.Evaluate(ctxWith(nil)) {
			t.Error("Evaluate() = true, want false")
		}
	})
}

func TestComparisonEvaluate(t *testing.T) {
	ctx := ctxWith(map[string]any{"~type": "lifecycle", "count": "3"})

	tests := []struct {
		name string
		node Evaluable
		want bool
	}{
		{
			"token equals literal",
			&Comparison{Left: Token{Key: "~type", Type: TokenTypeString}, Operator: OpEquals, Right: Literal{Value: "lifecycle"}},
			true,
		},
		{
			"coerced token greater than",
			&Comparison{Left: Token{Key: "count", Type: TokenTypeInt}, Operator: OpGreaterThan, Right: Literal{Value: int64(2)}},
			true,
		},
		{
			"unresolved token is false",
			&Comparison{Left: Token{Key: "missing", Type: TokenTypeString}, Operator: OpNotEquals, Right: Literal{Value: "x"}},
			false,
		},
		{
			"nil literal is false",
			&Comparison{Left: Token{Key: "~type", Type: TokenTypeString}, Operator: OpNotEquals, Right: Literal{}},
			false,
		},
		{
			"exists",
			&Unary{Operand: Token{Key: "~type", Type: TokenTypeAny}, Operator: OpExists},
			true,
		},
		{
			"exists missing",
			&Unary{Operand: Token{Key: "missing", Type: TokenTypeAny}, Operator: OpExists},
			false,
		},
		{
			"not exist missing",
			&Unary{Operand: Token{Key: "missing", Type: TokenTypeAny}, Operator: OpNotExist},
			true,
		},
		{
			"not exist present",
			&Unary{Operand: Token{Key: "count", Type: TokenTypeAny}, Operator: OpNotExist},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.Evaluate(ctx); got != tt.want {
				t.Errorf("%s.Evaluate() = %v, want %v", tt.node, got, tt.want)
			}
		})
	}
}

func TestHistoryCountResolve(t *testing.T) {
	hc := HistoryCount{
		Requests:   []types.HistoryRequest{{Mask: map[string]any{"~type": "a"}}},
		SearchType: types.SearchAny,
	}

	ctx := &mapContext{count: 4}
	if v, ok := hc.Resolve(ctx); !ok || v != int64(4) {
		t.Errorf("Resolve() = %v, %v, want 4, true", v, ok)
	}

	ctx = &mapContext{historyErr: errHistoryDown}
	if v, ok := hc.Resolve(ctx); !ok || v != int64(0) {
		t.Errorf("Resolve() with failing store = %v, %v, want 0, true", v, ok)
	}

	ctx = &mapContext{panicking: true}
	if v, ok := hc.Resolve(ctx); !ok || v != int64(0) {
		t.Errorf("Resolve() with panicking store = %v, %v, want 0, true", v, ok)
	}

	if !strings.HasPrefix(hc.String(), "history(any") {
		t.Errorf("String() = %q", hc.String())
	}
}

func TestExpressionString(t *testing.T) {
	l, _ := NewLogical(LogicAnd, []Evaluable{
		&Comparison{Left: Token{Template: "{{~type}}"}, Operator: OpEquals, Right: Literal{Value: "a"}},
		&Unary{Operand: Token{Template: "{{x}}"}, Operator: OpExists},
	})
	want := `(({{~type}} equals "a") and (exists {{x}}))`
	if got := l.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
