package rules

import (
	"encoding/json"
	"math/rand/v2"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/launchrules/internal/types"
)

// Context is the runtime view a condition tree is evaluated against.
// Implementations must be safe for concurrent use when the engine is shared.
type Context interface {
	// Resolve returns the raw value for a token key, or false if absent.
	Resolve(key string) (any, bool)

	// QueryHistory counts historical events matching requests.
	QueryHistory(requests []types.HistoryRequest, searchType types.SearchType) (int, error)
}

// HistoryQuerier is the historical event collaborator used by EventContext.
type HistoryQuerier interface {
	Query(requests []types.HistoryRequest, searchType types.SearchType) (int, error)
}

// Reserved token keys resolved from event envelope fields.
const (
	KeyType       = "~type"
	KeySource     = "~source"
	KeyName       = "~name"
	KeyID         = "~id"
	KeyTimestampU = "~timestampu"
	KeyTimestampZ = "~timestampz"
	KeyTimestampP = "~timestampp"
	KeyCacheBust  = "~cachebust"
	KeyAllJSON    = "~all_json"
	KeyAllURL     = "~all_url"
)

// EventContext resolves tokens against a single event.
type EventContext struct {
	event   types.Event
	history HistoryQuerier
}

// NewEventContext builds an evaluation context for event.
// history may be nil; historical conditions then resolve to a count of 0.
func NewEventContext(event types.Event, history HistoryQuerier) *EventContext {
	return &EventContext{event: event, history: history}
}

// Resolve implements Context.
func (c *EventContext) Resolve(key string) (any, bool) {
	switch key {
	case KeyType:
		return c.event.Type, c.event.Type != ""
	case KeySource:
		return c.event.Source, c.event.Source != ""
	case KeyName:
		return c.event.Name, c.event.Name != ""
	case KeyID:
		return string(c.event.ID), c.event.ID != ""
	case KeyTimestampU:
		return c.timestamp().Unix(), true
	case KeyTimestampZ:
		return c.timestamp().UTC().Format("2006-01-02T15:04:05Z"), true
	case KeyTimestampP:
		return c.timestamp().Format("2006-01-02T15:04:05-07:00"), true
	case KeyCacheBust:
		return strconv.Itoa(rand.IntN(100000000)), true
	case KeyAllJSON:
		data, err := json.Marshal(c.event.Data)
		if err != nil {
			return nil, false
		}
		return string(data), true
	case KeyAllURL:
		return encodeDataURL(c.event.Data), true
	}

	v, err := ResolvePath(c.event.Data, key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// QueryHistory implements Context.
func (c *EventContext) QueryHistory(requests []types.HistoryRequest, searchType types.SearchType) (int, error) {
	if c.history == nil {
		return 0, types.ErrNoHistory
	}
	return c.history.Query(requests, searchType)
}

func (c *EventContext) timestamp() time.Time {
	if c.event.Timestamp.IsZero() {
		return time.Now()
	}
	return c.event.Timestamp
}

// encodeDataURL renders flattened event data as a sorted query string.
func encodeDataURL(data types.EventData) string {
	flat := make(map[string]string)
	flattenInto(flat, "", map[string]any(data))

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(flat[k]))
	}
	return sb.String()
}

func flattenInto(dst map[string]string, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flattenInto(dst, joinKey(prefix, k), child)
		}
	case []any:
		for i, child := range v {
			flattenInto(dst, joinKey(prefix, strconv.Itoa(i)), child)
		}
	case nil:
		if prefix != "" {
			dst[prefix] = ""
		}
	default:
		dst[prefix] = formatText(v)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
