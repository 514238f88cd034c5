package rules

import (
	"time"

	"github.com/solatis/launchrules/internal/types"
)

// DecodeEvent decodes an event envelope:
//
//	{"id": "...", "name": "...", "type": "...", "source": "...",
//	 "data": {...}, "timestamp": "RFC3339" | epochMillis, "mask": ["k", ...]}
//
// name, type and source are required. A missing id is left empty and a
// missing timestamp is left zero; the history store fills both on record.
func DecodeEvent(data []byte) (types.Event, error) {
	obj, err := DecodeObject(data)
	if err != nil {
		return types.Event{}, err
	}
	return EventFromObject(obj)
}

// EventFromObject builds an event from an already-decoded envelope.
func EventFromObject(obj map[string]any) (types.Event, error) {
	var ev types.Event

	var err error
	if ev.Name, err = requireString(obj, "name", "event"); err != nil {
		return types.Event{}, err
	}
	if ev.Type, err = requireString(obj, "type", "event"); err != nil {
		return types.Event{}, err
	}
	if ev.Source, err = requireString(obj, "source", "event"); err != nil {
		return types.Event{}, err
	}

	id, err := optionalString(obj, "id", "event")
	if err != nil {
		return types.Event{}, err
	}
	if id != "" {
		if ev.ID, err = types.ParseEventID(id); err != nil {
			return types.Event{}, newParseError("event", obj, types.ErrWrongFieldType, "%q must be a UUID", "id")
		}
	}

	if v, ok := obj["data"]; ok && v != nil {
		d, ok := v.(map[string]any)
		if !ok {
			return types.Event{}, newParseError("event", obj, types.ErrWrongFieldType, "%q must be an object", "data")
		}
		ev.Data = types.EventData(d)
	}

	switch ts := obj["timestamp"].(type) {
	case nil:
	case string:
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return types.Event{}, newParseError("event", obj, types.ErrWrongFieldType, "%q must be RFC 3339", "timestamp")
		}
		ev.Timestamp = t
	case int64:
		ev.Timestamp = time.UnixMilli(ts)
	default:
		return types.Event{}, newParseError("event", obj, types.ErrWrongFieldType, "%q must be a string or integer", "timestamp")
	}

	mask, err := optionalList(obj, "mask", "event")
	if err != nil {
		return types.Event{}, err
	}
	for i, m := range mask {
		s, ok := m.(string)
		if !ok {
			return types.Event{}, newParseError(indexPath("event", "mask", i), m, types.ErrWrongFieldType, "mask entries must be strings")
		}
		ev.Mask = append(ev.Mask, s)
	}

	return ev, nil
}
