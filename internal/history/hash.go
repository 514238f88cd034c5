package history

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/solatis/launchrules/internal/rules"
	"github.com/solatis/launchrules/internal/types"
)

// Hash returns the hex xxhash64 of a mask. Nested maps and arrays are
// flattened to dotted keys, then the "key:value" pairs are sorted so the hash
// does not depend on map order. An empty mask hashes to the empty string.
func Hash(mask map[string]any) string {
	flat := make(map[string]string, len(mask))
	for k, v := range mask {
		flatten(flat, k, v)
	}
	if len(flat) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(flat))
	for k, v := range flat {
		pairs = append(pairs, k+":"+v)
	}
	sort.Strings(pairs)

	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(pairs, ",")))
}

// MaskOf selects the values that identify event in history. With no
// explicit mask every data key is used; otherwise each mask key is resolved
// like a token key, so reserved keys such as ~type are allowed.
func MaskOf(event types.Event) map[string]any {
	if len(event.Mask) == 0 {
		return map[string]any(event.Data)
	}

	ctx := rules.NewEventContext(event, nil)
	mask := make(map[string]any, len(event.Mask))
	for _, key := range event.Mask {
		if v, ok := ctx.Resolve(key); ok {
			mask[key] = v
		}
	}
	return mask
}

func flatten(dst map[string]string, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(dst, key+"."+k, child)
		}
	case types.EventData:
		flatten(dst, key, map[string]any(v))
	case []any:
		for i, child := range v {
			flatten(dst, key+"."+strconv.Itoa(i), child)
		}
	default:
		dst[key] = formatValue(v)
	}
}

// formatValue renders scalars so that 1, int64(1) and 1.0 hash alike.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", t)
	}
}
