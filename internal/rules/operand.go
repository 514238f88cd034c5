package rules

import (
	"fmt"
	"strings"

	"github.com/solatis/launchrules/internal/types"
)

// Operand is one side of an expression node.
// Resolve returns false when the value is unavailable in ctx.
type Operand interface {
	Resolve(ctx Context) (any, bool)
	fmt.Stringer
}

// Literal is a constant operand taken from the rule document.
type Literal struct {
	Value any
}

// Resolve implements Operand. A nil literal resolves to nil, which no
// comparison accepts.
func (l Literal) Resolve(Context) (any, bool) {
	return l.Value, true
}

func (l Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if l.Value == nil {
		return "null"
	}
	return formatText(l.Value)
}

// HistoryCount is a deferred operand that counts historical events each time
// it is resolved. Query failures, including panics, count as 0.
type HistoryCount struct {
	Requests   []types.HistoryRequest
	SearchType types.SearchType
}

// Resolve implements Operand.
func (h HistoryCount) Resolve(ctx Context) (value any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			value, ok = int64(0), true
		}
	}()

	count, err := ctx.QueryHistory(h.Requests, h.SearchType)
	if err != nil {
		return int64(0), true
	}
	return int64(count), true
}

func (h HistoryCount) String() string {
	masks := make([]string, len(h.Requests))
	for i, r := range h.Requests {
		masks[i] = fmt.Sprintf("%v", r.Mask)
	}
	return fmt.Sprintf("history(%s, [%s])", h.SearchType, strings.Join(masks, ", "))
}
