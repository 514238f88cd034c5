package rules

import (
	"fmt"
	"regexp"

	"github.com/solatis/launchrules/internal/types"
)

// tokenPattern matches {{key}} and {{transform(key)}} with optional inner spaces.
var tokenPattern = regexp.MustCompile(`^\{\{\s*(?:([A-Za-z]+)\(\s*([^()]+?)\s*\)|([^(){}]+?))\s*\}\}$`)

// transformTypes maps template transform names to declared token types.
var transformTypes = map[string]TokenType{
	"string": TokenTypeString,
	"int":    TokenTypeInt,
	"double": TokenTypeDouble,
	"float":  TokenTypeFloat,
	"bool":   TokenTypeBool,
}

// Token is a deferred operand resolved against the context at evaluation time.
type Token struct {
	Template string
	Key      string
	Type     TokenType
}

// ParseToken parses a mustache template. A transform in the template sets the
// declared type; an untransformed template keeps declaredType.
func ParseToken(template string, declaredType TokenType) (Token, error) {
	m := tokenPattern.FindStringSubmatch(template)
	if m == nil {
		return Token{}, fmt.Errorf("%w: %q", types.ErrInvalidTemplate, template)
	}
	if m[3] != "" {
		return Token{Template: template, Key: m[3], Type: declaredType}, nil
	}
	t, ok := transformTypes[m[1]]
	if !ok {
		return Token{}, fmt.Errorf("%w: unknown transform %q", types.ErrInvalidTemplate, m[1])
	}
	return Token{Template: template, Key: m[2], Type: t}, nil
}

// tokenFor builds the token for a matcher key, choosing the transform from the
// runtime type of the literal it will be compared against. Keys that do not
// survive the template grammar unchanged are rejected.
func tokenFor(key string, literal any) (Token, error) {
	template, declared := "{{"+key+"}}", TokenTypeAny
	switch literal.(type) {
	case string:
		template = "{{string(" + key + ")}}"
	case int, int64:
		template = "{{int(" + key + ")}}"
	case float64:
		template = "{{double(" + key + ")}}"
	case float32:
		template = "{{float(" + key + ")}}"
	case bool:
		template = "{{bool(" + key + ")}}"
	}

	tok, err := ParseToken(template, declared)
	if err != nil {
		return Token{}, err
	}
	if tok.Key != key {
		return Token{}, fmt.Errorf("%w: key %q", types.ErrInvalidTemplate, key)
	}
	return tok, nil
}

// Resolve implements Operand.
func (t Token) Resolve(ctx Context) (any, bool) {
	raw, ok := ctx.Resolve(t.Key)
	if !ok {
		return nil, false
	}
	coerced, err := Coerce(raw, t.Type)
	if err != nil || coerced.IsNull {
		return nil, false
	}
	return coerced.Value, true
}

func (t Token) String() string {
	return t.Template
}
