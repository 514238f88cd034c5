package rules

import (
	"math"
	"testing"

	"github.com/solatis/launchrules/internal/types"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		tokenType TokenType
		wantValue any
		wantNull  bool
		wantErr   error
	}{
		// STRING type tests
		{
			name:      "string: passthrough",
			value:     "com.adobe.eventType.lifecycle",
			tokenType: TokenTypeString,
			wantValue: "com.adobe.eventType.lifecycle",
		},
		{
			name:      "string: int64 to text",
			value:     int64(42),
			tokenType: TokenTypeString,
			wantValue: "42",
		},
		{
			name:      "string: float64 to text",
			value:     3.5,
			tokenType: TokenTypeString,
			wantValue: "3.5",
		},
		{
			name:      "string: integral float64 has no decimals",
			value:     float64(7),
			tokenType: TokenTypeString,
			wantValue: "7",
		},
		{
			name:      "string: bool to text",
			value:     true,
			tokenType: TokenTypeString,
			wantValue: "true",
		},
		{
			name:      "string: object rejected",
			value:     map[string]any{"a": int64(1)},
			tokenType: TokenTypeString,
			wantErr:   types.ErrCoercionFailed,
		},

		// INT type tests
		{
			name:      "int: int64 passthrough",
			value:     int64(10),
			tokenType: TokenTypeInt,
			wantValue: int64(10),
		},
		{
			name:      "int: int widened",
			value:     10,
			tokenType: TokenTypeInt,
			wantValue: int64(10),
		},
		{
			name:      "int: float truncates",
			value:     3.9,
			tokenType: TokenTypeInt,
			wantValue: int64(3),
		},
		{
			name:      "int: negative float truncates toward zero",
			value:     -3.9,
			tokenType: TokenTypeInt,
			wantValue: int64(-3),
		},
		{
			name:      "int: numeric string",
			value:     " 25 ",
			tokenType: TokenTypeInt,
			wantValue: int64(25),
		},
		{
			name:      "int: decimal string truncates",
			value:     "2.75",
			tokenType: TokenTypeInt,
			wantValue: int64(2),
		},
		{
			name:      "int: non-numeric string",
			value:     "abc",
			tokenType: TokenTypeInt,
			wantErr:   types.ErrCoercionFailed,
		},
		{
			name:      "int: whitespace string",
			value:     "   ",
			tokenType: TokenTypeInt,
			wantErr:   types.ErrCoercionFailed,
		},
		{
			name:      "int: bool rejected",
			value:     true,
			tokenType: TokenTypeInt,
			wantErr:   types.ErrCoercionFailed,
		},

		// DOUBLE type tests
		{
			name:      "double: float64 passthrough",
			value:     42.5,
			tokenType: TokenTypeDouble,
			wantValue: 42.5,
		},
		{
			name:      "double: int64 widened",
			value:     int64(999),
			tokenType: TokenTypeDouble,
			wantValue: 999.0,
		},
		{
			name:      "double: scientific string",
			value:     "1e3",
			tokenType: TokenTypeDouble,
			wantValue: 1000.0,
		},
		{
			name:      "double: bool rejected",
			value:     false,
			tokenType: TokenTypeDouble,
			wantErr:   types.ErrCoercionFailed,
		},
		{
			name:      "float: float32 widened",
			value:     float32(0.5),
			tokenType: TokenTypeFloat,
			wantValue: 0.5,
		},

		// BOOL type tests
		{
			name:      "bool: passthrough",
			value:     true,
			tokenType: TokenTypeBool,
			wantValue: true,
		},
		{
			name:      "bool: string true",
			value:     "true",
			tokenType: TokenTypeBool,
			wantValue: true,
		},
		{
			name:      "bool: string FALSE",
			value:     "FALSE",
			tokenType: TokenTypeBool,
			wantValue: false,
		},
		{
			name:      "bool: one is true",
			value:     int64(1),
			tokenType: TokenTypeBool,
			wantValue: true,
		},
		{
			name:      "bool: zero is false",
			value:     0.0,
			tokenType: TokenTypeBool,
			wantValue: false,
		},
		{
			name:      "bool: other numbers rejected",
			value:     int64(2),
			tokenType: TokenTypeBool,
			wantErr:   types.ErrCoercionFailed,
		},
		{
			name:      "bool: arbitrary string rejected",
			value:     "yes please",
			tokenType: TokenTypeBool,
			wantErr:   types.ErrCoercionFailed,
		},

		// ANY type tests
		{
			name:      "any: preserves int64",
			value:     int64(5),
			tokenType: TokenTypeAny,
			wantValue: int64(5),
		},

		// NULL handling
		{
			name:      "null: string type",
			value:     nil,
			tokenType: TokenTypeString,
			wantNull:  true,
		},
		{
			name:      "null: int type",
			value:     nil,
			tokenType: TokenTypeInt,
			wantNull:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Coerce(tt.value, tt.tokenType)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("Coerce() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Coerce() unexpected error = %v", err)
			}
			if result.IsNull != tt.wantNull {
				t.Errorf("Coerce() IsNull = %v, want %v", result.IsNull, tt.wantNull)
			}
			if !tt.wantNull && result.Value != tt.wantValue {
				t.Errorf("Coerce() Value = %v (%T), want %v (%T)", result.Value, result.Value, tt.wantValue, tt.wantValue)
			}
		})
	}
}

func TestCoerceIntNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Coerce(v, TokenTypeInt); err != types.ErrCoercionFailed {
			t.Errorf("Coerce(%v, int) error = %v, want ErrCoercionFailed", v, err)
		}
	}
}

func TestTokenTypeString(t *testing.T) {
	if TokenTypeDouble.String() != "double" {
		t.Errorf("TokenTypeDouble.String() = %q, want double", TokenTypeDouble.String())
	}
	if TokenType(99).String() != "any" {
		t.Errorf("unknown TokenType.String() = %q, want any", TokenType(99).String())
	}
}
