package rules

import (
	"errors"
	"sync/atomic"

	"github.com/solatis/launchrules/internal/types"
)

// mapContext resolves tokens from a flat map and answers history queries
// with a fixed count.
type mapContext struct {
	values     map[string]any
	count      int
	historyErr error
	panicking  bool
	queries    atomic.Int64

	lastRequests   []types.HistoryRequest
	lastSearchType types.SearchType
}

func (c *mapContext) Resolve(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

func (c *mapContext) QueryHistory(requests []types.HistoryRequest, searchType types.SearchType) (int, error) {
	c.queries.Add(1)
	c.lastRequests = requests
	c.lastSearchType = searchType
	if c.panicking {
		panic("history store exploded")
	}
	if c.historyErr != nil {
		return 0, c.historyErr
	}
	return c.count, nil
}

func ctxWith(values map[string]any) *mapContext {
	return &mapContext{values: values}
}

var errHistoryDown = errors.New("history store unavailable")

// mustDecode decodes a JSON object literal for tests.
func mustDecode(s string) map[string]any {
	obj, err := DecodeObject([]byte(s))
	if err != nil {
		panic(err)
	}
	return obj
}
