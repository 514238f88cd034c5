// internal/rules/parser.go
package rules

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/launchrules/internal/types"
)

/*
 * Rule document parsing.
 *
 * Converts decoded JSON (map[string]any trees from DecodeJSON) into
 * immutable Rule and RuleSet values with Evaluable condition trees.
 *
 * Parsing workflow:
 *   1. RuleSet: version, reEvaluable default, rules array
 *   2. Rule: condition object, consequences array, meta.reEvaluate
 *   3. Condition: dispatch on type (group/matcher/historical), recurse
 *   4. Consequence: id, type, non-empty detail
 *
 * All-or-nothing: the first failure anywhere aborts the enclosing rule and
 * therefore the whole rule set. Partial trees are never returned.
 *
 * Errors are *ParseError values carrying the document path and the raw JSON
 * fragment. Public entry points log the failure once; recursive helpers only
 * return it.
 */

// Parser builds rule sets from decoded JSON documents.
// A Parser holds no per-document state and is safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger discards parse diagnostics.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

// logFailure records a rejected document fragment.
func (p *Parser) logFailure(msg string, err error) {
	var pe *ParseError
	if errors.As(err, &pe) {
		p.logger.Warn(msg,
			"path", pe.Path,
			"error", pe.Error(),
			"fragment", pe.Fragment,
		)
		return
	}
	p.logger.Warn(msg, "error", err)
}

// field accessors shared by condition, consequence and rule parsing

func requireValue(obj map[string]any, key, path string) (any, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return nil, newParseError(path, obj, types.ErrMissingField, "%q", key)
	}
	return v, nil
}

func requireString(obj map[string]any, key, path string) (string, error) {
	v, err := requireValue(obj, key, path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", newParseError(path, obj, types.ErrWrongFieldType, "%q must be a string", key)
	}
	return s, nil
}

func requireObject(obj map[string]any, key, path string) (map[string]any, error) {
	v, err := requireValue(obj, key, path)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, newParseError(path, obj, types.ErrWrongFieldType, "%q must be an object", key)
	}
	return m, nil
}

func requireList(obj map[string]any, key, path string) ([]any, error) {
	v, err := requireValue(obj, key, path)
	if err != nil {
		return nil, err
	}
	l, ok := v.([]any)
	if !ok {
		return nil, newParseError(path, obj, types.ErrWrongFieldType, "%q must be an array", key)
	}
	return l, nil
}

// optionalList returns nil for an absent or null key.
func optionalList(obj map[string]any, key, path string) ([]any, error) {
	if v, ok := obj[key]; !ok || v == nil {
		return nil, nil
	}
	return requireList(obj, key, path)
}

func optionalString(obj map[string]any, key, path string) (string, error) {
	if v, ok := obj[key]; !ok || v == nil {
		return "", nil
	}
	return requireString(obj, key, path)
}

func optionalInt(obj map[string]any, key, path string) (int64, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := v.(int64)
	if !ok {
		return 0, newParseError(path, obj, types.ErrWrongFieldType, "%q must be an integer", key)
	}
	return n, nil
}

func optionalBool(obj map[string]any, key, path string) (bool, bool, error) {
	v, ok := obj[key]
	if !ok || v == nil {
		return false, false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, false, newParseError(path, obj, types.ErrWrongFieldType, "%q must be a boolean", key)
	}
	return b, true, nil
}

func indexPath(path, key string, i int) string {
	return childPath(path, fmt.Sprintf("%s[%d]", key, i))
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
