// Package types provides domain models shared across launchrules components.
//
// Zero-dependency design: types.go, events.go and errors.go use only the
// standard library so the rules core can be embedded without pulling in the
// storage or transport stacks. ID utilities in ids.go import uuid.
package types

import "encoding/json"

// EventID represents a UUIDv7 event identifier.
// String alias enables type safety while maintaining JSON string serialization.
type EventID string

// RuleSetID represents a UUIDv7 identifier assigned to each parsed rule set.
// Two parses of the same document receive different IDs.
type RuleSetID string

// EventData is the decoded data payload of an event.
// Values are the normalized JSON forms: string, int64, float64, bool, nil,
// map[string]any and []any.
type EventData map[string]any

// MarshalJSON implements json.Marshaler.
// A nil map encodes as an empty object rather than null.
func (d EventData) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(d))
}

// Resource limits enforced by the rules parser and event history.
const (
	// MaxConditionDepth bounds group nesting during recursive condition parsing.
	MaxConditionDepth = 32

	// MaxMatcherValues limits the fan-out of a single matcher condition.
	MaxMatcherValues = 256

	// MaxHistoryRequests limits event masks in one historical condition.
	MaxHistoryRequests = 64

	// MaxFragmentLength truncates raw JSON fragments carried in parse errors.
	MaxFragmentLength = 512
)
