// internal/rules/fieldpath.go
package rules

import (
	"strconv"
	"strings"

	"github.com/solatis/launchrules/internal/types"
)

/*
 * Dotted key resolution for event data.
 *
 * Token keys address event data with dotted paths ("user.address.city",
 * "items.0.sku"). Resolution tries the whole key as a flat map key first,
 * then walks the remaining segments through nested maps and arrays. A flat
 * hit wins so data that already uses dotted keys stays addressable.
 *
 * Key functions:
 *   - ResolvePath: Traverses data following a dotted key
 *   - resolveSegments: Internal recursive traversal
 *
 * Depth: keys are split into at most MaxPathDepth segments; deeper keys
 * resolve as not found rather than recursing without bound.
 */

// MaxPathDepth prevents unbounded recursion during dotted key resolution.
const MaxPathDepth = 16

// ResolvePath looks up a dotted key in data.
// Returns ErrFieldNotFound if the key does not exist.
func ResolvePath(data map[string]any, key string) (any, error) {
	if data == nil || key == "" {
		return nil, types.ErrFieldNotFound
	}
	if v, ok := data[key]; ok {
		return v, nil
	}

	segments := strings.Split(key, ".")
	if len(segments) > MaxPathDepth {
		return nil, types.ErrFieldNotFound
	}
	return resolveSegments(segments, data)
}

// resolveSegments walks nested maps and arrays. At each map level the longest
// dotted prefix present as a literal key is preferred.
func resolveSegments(segments []string, current any) (any, error) {
	if len(segments) == 0 {
		return current, nil
	}

	switch v := current.(type) {
	case map[string]any:
		for n := len(segments); n > 0; n-- {
			candidate := strings.Join(segments[:n], ".")
			val, ok := v[candidate]
			if !ok {
				continue
			}
			if result, err := resolveSegments(segments[n:], val); err == nil {
				return result, nil
			}
		}
		return nil, types.ErrFieldNotFound

	case types.EventData:
		return resolveSegments(segments, map[string]any(v))

	case []any:
		idx, err := strconv.Atoi(segments[0])
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, types.ErrFieldNotFound
		}
		return resolveSegments(segments[1:], v[idx])

	default:
		// Scalar value but path continues
		return nil, types.ErrFieldNotFound
	}
}
