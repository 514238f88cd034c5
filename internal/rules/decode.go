package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/solatis/launchrules/internal/types"
)

// DecodeJSON decodes a JSON document into normalized Go values.
// Integral numbers become int64, other numbers float64, objects
// map[string]any and arrays []any.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidJSON, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after document", types.ErrInvalidJSON)
	}
	return Normalize(v)
}

// DecodeObject decodes a JSON document that must be an object.
func DecodeObject(data []byte) (map[string]any, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document is not an object", types.ErrWrongFieldType)
	}
	return obj, nil
}

// Normalize converts json.Number leaves and copies nested containers.
// Values from a plain json.Unmarshal (float64 numbers) pass through unchanged.
// A number outside the float64 range fails with ErrInvalidJSON.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		return normalizeNumber(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			n, err := Normalize(child)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

func normalizeNumber(n json.Number) (any, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: number %s out of range", types.ErrInvalidJSON, s)
	}
	return f, nil
}

// keyOrders records the member order of every object in a JSON document,
// keyed by the path notation ParseError uses ("" is the root object).
// Malformed input yields whatever was collected before the error.
func keyOrders(data []byte) map[string][]string {
	orders := make(map[string][]string)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	_ = walkKeyOrder(dec, "", orders)
	return orders
}

func walkKeyOrder(dec *json.Decoder, path string, orders map[string][]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch delim {
	case '{':
		var keys []string
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ := kt.(string)
			keys = append(keys, key)
			if err := walkKeyOrder(dec, childPath(path, key), orders); err != nil {
				return err
			}
		}
		orders[path] = keys
	case '[':
		for i := 0; dec.More(); i++ {
			if err := walkKeyOrder(dec, fmt.Sprintf("%s[%d]", path, i), orders); err != nil {
				return err
			}
		}
	}

	// closing delimiter
	_, err = dec.Token()
	return err
}

// fragment renders v as compact JSON for diagnostics, truncated to
// MaxFragmentLength bytes.
func fragment(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	if len(data) > types.MaxFragmentLength {
		return string(data[:types.MaxFragmentLength]) + "..."
	}
	return string(data)
}
