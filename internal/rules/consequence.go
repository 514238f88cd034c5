package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/solatis/launchrules/internal/types"
)

// Consequence is an action attached to a rule, dispatched when the rule matches.
//
// Detail encodes to JSON with object members in document order when the
// consequence came from Parser.RuleSet; otherwise members encode sorted.
type Consequence struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Detail map[string]any `json:"detail"`

	// keyOrder maps paths relative to Detail ("" is Detail itself) to the
	// member order of that object in the source document.
	keyOrder map[string][]string
}

// Consequence builds a Consequence from its JSON object.
// id and type must be non-empty strings and detail a non-empty object.
func (p *Parser) Consequence(obj map[string]any) (Consequence, error) {
	c, err := parseConsequence(obj, "consequence", nil)
	if err != nil {
		p.logFailure("Rejected consequence", err)
		return Consequence{}, err
	}
	return c, nil
}

func parseConsequence(obj map[string]any, path string, orders map[string][]string) (Consequence, error) {
	id, err := requireString(obj, "id", path)
	if err != nil {
		return Consequence{}, invalidConsequence(err)
	}
	typ, err := requireString(obj, "type", path)
	if err != nil {
		return Consequence{}, invalidConsequence(err)
	}
	detail, err := requireObject(obj, "detail", path)
	if err != nil {
		return Consequence{}, invalidConsequence(err)
	}

	switch {
	case id == "":
		return Consequence{}, newParseError(path, obj, types.ErrInvalidConsequence, "empty \"id\"")
	case typ == "":
		return Consequence{}, newParseError(path, obj, types.ErrInvalidConsequence, "empty \"type\"")
	case len(detail) == 0:
		return Consequence{}, newParseError(path, obj, types.ErrInvalidConsequence, "empty \"detail\"")
	}

	normalized, err := Normalize(detail)
	if err != nil {
		return Consequence{}, newParseError(path, obj, types.ErrInvalidConsequence, "%v", err)
	}

	return Consequence{
		ID:       id,
		Type:     typ,
		Detail:   normalized.(map[string]any),
		keyOrder: subtreeOrders(orders, childPath(path, "detail")),
	}, nil
}

// DetailKeys returns the top-level detail keys in document order.
func (c Consequence) DetailKeys() []string {
	return orderedKeys(c.Detail, c.keyOrder[""])
}

// MarshalJSON implements json.Marshaler, keeping detail members in
// document order.
func (c Consequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	if err := writeJSONValue(&buf, c.ID, "", nil); err != nil {
		return nil, err
	}
	buf.WriteString(`,"type":`)
	if err := writeJSONValue(&buf, c.Type, "", nil); err != nil {
		return nil, err
	}
	buf.WriteString(`,"detail":`)
	if err := writeJSONValue(&buf, c.Detail, "", c.keyOrder); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONValue(buf *bytes.Buffer, v any, path string, orders map[string][]string) error {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, k := range orderedKeys(t, orders[path]) {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSONValue(buf, t[k], childPath(path, k), orders); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for i, child := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONValue(buf, child, fmt.Sprintf("%s[%d]", path, i), orders); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return nil
}

// orderedKeys lists m's keys in order, then any remaining keys sorted.
func orderedKeys(m map[string]any, order []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range order {
		if _, ok := m[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// subtreeOrders extracts the orders below prefix, re-rooted at "".
func subtreeOrders(orders map[string][]string, prefix string) map[string][]string {
	if len(orders) == 0 {
		return nil
	}
	sub := make(map[string][]string)
	for path, keys := range orders {
		switch {
		case path == prefix:
			sub[""] = keys
		case strings.HasPrefix(path, prefix+"."):
			sub[strings.TrimPrefix(path, prefix+".")] = keys
		case strings.HasPrefix(path, prefix+"["):
			sub[strings.TrimPrefix(path, prefix)] = keys
		}
	}
	return sub
}

// invalidConsequence reclassifies a field error as ErrInvalidConsequence,
// keeping the path and fragment of the original.
func invalidConsequence(err error) error {
	pe, ok := err.(*ParseError)
	if !ok {
		return err
	}
	msg := pe.Err.Error()
	if pe.Message != "" {
		msg += ": " + pe.Message
	}
	return &ParseError{Path: pe.Path, Fragment: pe.Fragment, Message: msg, Err: types.ErrInvalidConsequence}
}
