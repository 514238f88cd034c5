// internal/rules/condition.go
package rules

import (
	"github.com/solatis/launchrules/internal/types"
)

/*
 * Condition compilation.
 *
 * A condition object is {"type": ..., "definition": {...}}. The definition
 * is validated into a ConditionDefinition holding only the fields its kind
 * uses, then compiled into an Evaluable:
 *
 *   group       -> Logical(and|or) over recursively compiled children
 *   matcher     -> Comparison, Unary, or Logical(or) of Comparisons
 *   historical  -> Comparison(HistoryCount, op, Literal(value))
 *
 * Matcher fan-out: zero values compare against a null placeholder (false for
 * every binary operator), one value yields a bare Comparison, N values yield
 * or(Comparison_1..Comparison_N). ex/nx ignore values and yield one Unary.
 */

// ConditionKind is the parse-time type tag of a condition object.
type ConditionKind string

const (
	KindGroup      ConditionKind = "group"
	KindMatcher    ConditionKind = "matcher"
	KindHistorical ConditionKind = "historical"
)

// ConditionDefinition holds the validated fields of one condition definition.
// Only the fields relevant to Kind are populated.
type ConditionDefinition struct {
	Kind ConditionKind

	// group
	Logic      LogicalOperator
	Conditions []map[string]any

	// matcher and historical
	Key     string
	Matcher Operator
	Values  []any

	// historical
	Events     []map[string]any
	Value      int64
	From       int64
	To         int64
	SearchType types.SearchType
}

// Condition compiles a condition object into an Evaluable.
func (p *Parser) Condition(obj map[string]any) (Evaluable, error) {
	e, err := p.condition(obj, "condition", 0)
	if err != nil {
		p.logFailure("Rejected condition", err)
		return nil, err
	}
	return e, nil
}

func (p *Parser) condition(obj map[string]any, path string, depth int) (Evaluable, error) {
	if depth > types.MaxConditionDepth {
		return nil, newParseError(path, obj, types.ErrConditionTooDeep, "depth %d", depth)
	}

	def, err := parseDefinition(obj, path)
	if err != nil {
		return nil, err
	}

	switch def.Kind {
	case KindGroup:
		return p.group(def, path, depth)
	case KindMatcher:
		e, err := matcher(def)
		if err != nil {
			return nil, newParseError(childPath(path, "definition"), obj["definition"], types.ErrWrongFieldType, "\"key\": %v", err)
		}
		return e, nil
	case KindHistorical:
		return historical(def), nil
	default:
		return nil, newParseError(path, obj, types.ErrUnsupportedConditionType, "%q", def.Kind)
	}
}

// parseDefinition validates the type tag and the type-specific fields.
func parseDefinition(obj map[string]any, path string) (ConditionDefinition, error) {
	kind, err := requireString(obj, "type", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	defPath := childPath(path, "definition")
	raw, err := requireObject(obj, "definition", path)
	if err != nil {
		return ConditionDefinition{}, err
	}

	switch ConditionKind(kind) {
	case KindGroup:
		return parseGroupDefinition(raw, defPath)
	case KindMatcher:
		return parseMatcherDefinition(raw, defPath)
	case KindHistorical:
		return parseHistoricalDefinition(raw, defPath)
	default:
		return ConditionDefinition{}, newParseError(path, obj, types.ErrUnsupportedConditionType, "%q", kind)
	}
}

func parseGroupDefinition(raw map[string]any, path string) (ConditionDefinition, error) {
	logic, err := requireString(raw, "logic", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	op, ok := ParseLogic(logic)
	if !ok {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrUnsupportedLogic, "%q", logic)
	}

	list, err := requireList(raw, "conditions", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	if len(list) == 0 {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrEmptyGroup, "")
	}

	children := make([]map[string]any, len(list))
	for i, item := range list {
		child, ok := item.(map[string]any)
		if !ok {
			return ConditionDefinition{}, newParseError(indexPath(path, "conditions", i), item, types.ErrWrongFieldType, "condition must be an object")
		}
		children[i] = child
	}

	return ConditionDefinition{Kind: KindGroup, Logic: op, Conditions: children}, nil
}

func parseMatcherDefinition(raw map[string]any, path string) (ConditionDefinition, error) {
	key, err := requireString(raw, "key", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	code, err := requireString(raw, "matcher", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	op, ok := LookupMatcher(code)
	if !ok {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrUnsupportedMatcher, "%q", code)
	}

	values, err := optionalList(raw, "values", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	if len(values) > types.MaxMatcherValues {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrTooManyValues, "%d values", len(values))
	}
	for i, v := range values {
		switch v.(type) {
		case map[string]any, []any:
			return ConditionDefinition{}, newParseError(indexPath(path, "values", i), v, types.ErrWrongFieldType, "matcher values must be scalars")
		}
	}

	return ConditionDefinition{Kind: KindMatcher, Key: key, Matcher: op, Values: values}, nil
}

func parseHistoricalDefinition(raw map[string]any, path string) (ConditionDefinition, error) {
	list, err := requireList(raw, "events", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	if len(list) == 0 {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrMissingField, "\"events\" must not be empty")
	}
	if len(list) > types.MaxHistoryRequests {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrTooManyRequests, "%d events", len(list))
	}
	events := make([]map[string]any, len(list))
	for i, item := range list {
		mask, ok := item.(map[string]any)
		if !ok {
			return ConditionDefinition{}, newParseError(indexPath(path, "events", i), item, types.ErrWrongFieldType, "event must be an object")
		}
		events[i] = mask
	}

	code, err := requireString(raw, "matcher", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	op, ok := LookupMatcher(code)
	if !ok || op.IsUnary() {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrUnsupportedMatcher, "%q", code)
	}

	rawValue, err := requireValue(raw, "value", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	value, ok := rawValue.(int64)
	if !ok {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrWrongFieldType, "\"value\" must be an integer")
	}

	from, err := optionalInt(raw, "from", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	to, err := optionalInt(raw, "to", path)
	if err != nil {
		return ConditionDefinition{}, err
	}

	st, err := optionalString(raw, "searchType", path)
	if err != nil {
		return ConditionDefinition{}, err
	}
	searchType, ok := types.ParseSearchType(st)
	if !ok {
		return ConditionDefinition{}, newParseError(path, raw, types.ErrUnsupportedSearchType, "%q", st)
	}

	return ConditionDefinition{
		Kind:       KindHistorical,
		Events:     events,
		Matcher:    op,
		Value:      value,
		From:       from,
		To:         to,
		SearchType: searchType,
	}, nil
}

// group compiles each child; the first failing child aborts the group.
func (p *Parser) group(def ConditionDefinition, path string, depth int) (Evaluable, error) {
	defPath := childPath(path, "definition")
	children := make([]Evaluable, 0, len(def.Conditions))
	for i, obj := range def.Conditions {
		child, err := p.condition(obj, indexPath(defPath, "conditions", i), depth+1)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return NewLogical(def.Logic, children)
}

// matcher expands a matcher definition into its expression node.
func matcher(def ConditionDefinition) (Evaluable, error) {
	if def.Matcher.IsUnary() {
		tok, err := tokenFor(def.Key, nil)
		if err != nil {
			return nil, err
		}
		return &Unary{Operand: tok, Operator: def.Matcher}, nil
	}

	switch len(def.Values) {
	case 0:
		return comparison(def.Key, def.Matcher, nil)
	case 1:
		return comparison(def.Key, def.Matcher, def.Values[0])
	}

	children := make([]Evaluable, len(def.Values))
	for i, v := range def.Values {
		c, err := comparison(def.Key, def.Matcher, v)
		if err != nil {
			return nil, err
		}
		children[i] = c
	}
	return &Logical{Operator: LogicOr, Operands: children}, nil
}

func comparison(key string, op Operator, value any) (*Comparison, error) {
	tok, err := tokenFor(key, value)
	if err != nil {
		return nil, err
	}
	return &Comparison{
		Left:     tok,
		Operator: op,
		Right:    Literal{Value: value},
	}, nil
}

// historical compares the live history count against the literal value.
func historical(def ConditionDefinition) Evaluable {
	requests := make([]types.HistoryRequest, len(def.Events))
	for i, mask := range def.Events {
		requests[i] = types.HistoryRequest{Mask: mask, From: def.From, To: def.To}
	}
	return &Comparison{
		Left:     HistoryCount{Requests: requests, SearchType: def.SearchType},
		Operator: def.Matcher,
		Right:    Literal{Value: def.Value},
	}
}
