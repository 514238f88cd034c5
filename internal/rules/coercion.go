// internal/rules/coercion.go
package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/solatis/launchrules/internal/types"
)

/*
 * Type coercion for token resolution.
 *
 * Implements the token type system (ANY, STRING, INT, DOUBLE, FLOAT, BOOL).
 * Each matcher literal type selects a transform embedded in the token
 * template; the transform decides how the raw context value is coerced.
 *
 * Key distinction: nil values vs coercion failures. Both leave the operand
 * unresolved, and an unresolved operand makes every comparison false, but
 * only coercion failures return ErrCoercionFailed so callers can log them.
 *
 * Type modes:
 *   - STRING: Lenient - auto-coerce scalars to their text form
 *   - INT: Numeric strings parse, floats truncate toward zero
 *   - DOUBLE/FLOAT: Numeric strings parse, integers widen
 *   - BOOL: booleans, "true"/"false" strings, 0/1 numbers
 *   - ANY: Lenient - preserve original type
 */

// TokenType is the declared coercion type of a token operand.
type TokenType int

const (
	TokenTypeAny TokenType = iota
	TokenTypeString
	TokenTypeInt
	TokenTypeDouble
	TokenTypeFloat
	TokenTypeBool
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeString:
		return "string"
	case TokenTypeInt:
		return "int"
	case TokenTypeDouble:
		return "double"
	case TokenTypeFloat:
		return "float"
	case TokenTypeBool:
		return "bool"
	default:
		return "any"
	}
}

// CoercionResult holds the coerced value or indicates null.
type CoercionResult struct {
	Value  any  // coerced value (valid only if !IsNull)
	IsNull bool // true if input was nil/null
}

// Coerce attempts to convert value to the declared token type.
// Returns CoercionResult with IsNull=true for nil input.
// Returns ErrCoercionFailed for impossible coercions.
func Coerce(value any, tokenType TokenType) (CoercionResult, error) {
	if value == nil {
		return CoercionResult{IsNull: true}, nil
	}

	switch tokenType {
	case TokenTypeString:
		return coerceText(value)
	case TokenTypeInt:
		return coerceInt(value)
	case TokenTypeDouble, TokenTypeFloat:
		return coerceDouble(value)
	case TokenTypeBool:
		return coerceBool(value)
	case TokenTypeAny:
		return CoercionResult{Value: value}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// coerceText converts scalars to their string representation.
// Maps and slices have no text form and fail.
func coerceText(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case map[string]any, []any:
		return CoercionResult{}, types.ErrCoercionFailed
	default:
		return CoercionResult{Value: formatText(v)}, nil
	}
}

// formatText renders a scalar the way the string fallback compares it.
func formatText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// coerceInt converts value to int64. Floats truncate toward zero.
// Whitespace-only strings return ErrCoercionFailed.
func coerceInt(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case int64:
		return CoercionResult{Value: v}, nil
	case int:
		return CoercionResult{Value: int64(v)}, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: int64(v)}, nil
	case float32:
		return coerceInt(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return CoercionResult{Value: n}, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return coerceInt(f)
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// coerceDouble converts value to float64.
// Rejects booleans; "true" is not a number.
func coerceDouble(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case float64:
		return CoercionResult{Value: v}, nil
	case float32:
		return CoercionResult{Value: float64(v)}, nil
	case int64:
		return CoercionResult{Value: float64(v)}, nil
	case int:
		return CoercionResult{Value: float64(v)}, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: f}, nil
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}

// coerceBool converts value to bool.
// Numbers map 0 -> false and 1 -> true; any other number fails.
func coerceBool(value any) (CoercionResult, error) {
	switch v := value.(type) {
	case bool:
		return CoercionResult{Value: v}, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return CoercionResult{}, types.ErrCoercionFailed
		}
		return CoercionResult{Value: b}, nil
	case int64, int, float64, float32:
		f, _ := toFloat64(v)
		switch f {
		case 0:
			return CoercionResult{Value: false}, nil
		case 1:
			return CoercionResult{Value: true}, nil
		}
		return CoercionResult{}, types.ErrCoercionFailed
	default:
		return CoercionResult{}, types.ErrCoercionFailed
	}
}
