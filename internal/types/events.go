package types

import "time"

// Event is the runtime input evaluated against the active rule set.
type Event struct {
	ID        EventID   `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp"`

	// Mask lists the data keys (dotted paths) that identify the event in
	// history. An empty mask uses every flattened data key.
	Mask []string `json:"mask,omitempty"`
}

// SearchType controls how a historical query combines its requests.
type SearchType string

const (
	// SearchAny sums the matching event counts of every request.
	SearchAny SearchType = "any"

	// SearchOrdered yields 1 when the requests matched in chronological order, else 0.
	SearchOrdered SearchType = "ordered"

	// SearchAll yields 1 when every request matched at least once, else 0.
	SearchAll SearchType = "all"
)

// ParseSearchType maps a JSON search type to SearchType.
// Empty input defaults to SearchAny.
func ParseSearchType(s string) (SearchType, bool) {
	switch SearchType(s) {
	case "", SearchAny:
		return SearchAny, true
	case SearchOrdered:
		return SearchOrdered, true
	case SearchAll:
		return SearchAll, true
	default:
		return "", false
	}
}

// HistoryRequest describes one historical event lookup.
// From and To are epoch milliseconds; To == 0 means "until now".
type HistoryRequest struct {
	Mask map[string]any
	From int64
	To   int64
}
