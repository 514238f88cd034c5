package rules

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/launchrules/internal/types"
)

func matcherCondition(key, code string, values ...any) map[string]any {
	def := map[string]any{"key": key, "matcher": code}
	if values != nil {
		def["values"] = values
	}
	return map[string]any{"type": "matcher", "definition": def}
}

func groupCondition(logic string, children ...map[string]any) map[string]any {
	conds := make([]any, len(children))
	for i, c := range children {
		conds[i] = c
	}
	return map[string]any{
		"type":       "group",
		"definition": map[string]any{"logic": logic, "conditions": conds},
	}
}

func TestConditionMatcher(t *testing.T) {
	p := NewParser(nil)

	t.Run("single value is a bare comparison", func(t *testing.T) {
		e, err := p.Condition(matcherCondition("~type", "eq", "com.adobe.eventType.lifecycle"))
		if err != nil {
			t.Fatalf("Condition() error = %v", err)
		}
		c, ok := e.(*Comparison)
		if !ok {
			t.Fatalf("Condition() = %T, want *Comparison", e)
		}
		tok := c.Left.(Token)
		if tok.Key != "~type" || tok.Type != TokenTypeString || tok.Template != "{{string(~type)}}" {
			t.Errorf("left token = %+v", tok)
		}
		if c.Operator != OpEquals {
			t.Errorf("operator = %v, want equals", c.Operator)
		}
		if c.Right.(Literal).Value != "com.adobe.eventType.lifecycle" {
			t.Errorf("right literal = %v", c.Right)
		}
	})

	t.Run("transform follows literal type", func(t *testing.T) {
		e, err := p.Condition(mustDecode(`{"type":"matcher","definition":{"key":"count","matcher":"gt","values":[3]}}`))
		if err != nil {
			t.Fatalf("Condition() error = %v", err)
		}
		if tok := e.(*Comparison).Left.(Token); tok.Template != "{{int(count)}}" {
			t.Errorf("template = %q, want {{int(count)}}", tok.Template)
		}
	})

	t.Run("zero values never match binary operators", func(t *testing.T) {
		e, err := p.Condition(matcherCondition("~type", "ne"))
		if err != nil {
			t.Fatalf("Condition() error = %v", err)
		}
		if _, ok := e.(*Comparison); !ok {
			t.Fatalf("Condition() = %T, want *Comparison", e)
		}
		if e.Evaluate(ctxWith(map[string]any{"~type": "anything"})) {
			t.Error("Evaluate() = true, want false against null placeholder")
		}
	})

	t.Run("exists ignores values", func(t *testing.T) {
		e, err := p.Condition(matcherCondition("user.id", "ex", "ignored"))
		if err != nil {
			t.Fatalf("Condition() error = %v", err)
		}
		u, ok := e.(*Unary)
		if !ok || u.Operator != OpExists {
			t.Fatalf("Condition() = %v, want exists Unary", e)
		}
		if !e.Evaluate(ctxWith(map[string]any{"user.id": int64(7)})) {
			t.Error("exists on present key = false")
		}
	})

	t.Run("not exist", func(t *testing.T) {
		e, err := p.Condition(matcherCondition("user.id", "nx"))
		if err != nil {
			t.Fatalf("Condition() error = %v", err)
		}
		if !e.Evaluate(ctxWith(nil)) {
			t.Error("notExist on missing key = false")
		}
	})
}

func TestConditionErrors(t *testing.T) {
	p := NewParser(nil)

	tests := []struct {
		name     string
		json     string
		sentinel error
		category error
	}{
		{"missing type", `{"definition":{}}`, types.ErrMissingField, types.ErrMalformedInput},
		{"unknown type", `{"type":"regex","definition":{}}`, types.ErrUnsupportedConditionType, types.ErrUnsupportedOperator},
		{"definition not object", `{"type":"matcher","definition":[]}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"matcher missing key", `{"type":"matcher","definition":{"matcher":"eq","values":["a"]}}`, types.ErrMissingField, types.ErrMalformedInput},
		{"matcher null key", `{"type":"matcher","definition":{"key":null,"matcher":"eq"}}`, types.ErrMissingField, types.ErrMalformedInput},
		{"matcher key not string", `{"type":"matcher","definition":{"key":5,"matcher":"eq"}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"unknown matcher", `{"type":"matcher","definition":{"key":"a","matcher":"in","values":["a"]}}`, types.ErrUnsupportedMatcher, types.ErrUnsupportedOperator},
		{"values not array", `{"type":"matcher","definition":{"key":"a","matcher":"eq","values":"a"}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"object value", `{"type":"matcher","definition":{"key":"a","matcher":"eq","values":[{"x":1}]}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"key with parentheses", `{"type":"matcher","definition":{"key":"a(b)","matcher":"eq","values":["x"]}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"key with braces", `{"type":"matcher","definition":{"key":"x}}","matcher":"ex"}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"key with outer spaces", `{"type":"matcher","definition":{"key":" a ","matcher":"gt","values":[1]}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"group missing logic", `{"type":"group","definition":{"conditions":[{"type":"matcher","definition":{"key":"a","matcher":"ex"}}]}}`, types.ErrMissingField, types.ErrMalformedInput},
		{"group bad logic", `{"type":"group","definition":{"logic":"xor","conditions":[{"type":"matcher","definition":{"key":"a","matcher":"ex"}}]}}`, types.ErrUnsupportedLogic, types.ErrUnsupportedOperator},
		{"group empty", `{"type":"group","definition":{"logic":"and","conditions":[]}}`, types.ErrEmptyGroup, types.ErrMalformedInput},
		{"group child not object", `{"type":"group","definition":{"logic":"and","conditions":[1]}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"group bad child", `{"type":"group","definition":{"logic":"and","conditions":[{"type":"matcher","definition":{"key":"a","matcher":"zz"}}]}}`, types.ErrUnsupportedMatcher, types.ErrUnsupportedOperator},
		{"historical no events", `{"type":"historical","definition":{"matcher":"ge","value":1}}`, types.ErrMissingField, types.ErrMalformedInput},
		{"historical empty events", `{"type":"historical","definition":{"events":[],"matcher":"ge","value":1}}`, types.ErrMissingField, types.ErrMalformedInput},
		{"historical unary matcher", `{"type":"historical","definition":{"events":[{"a":"b"}],"matcher":"ex","value":1}}`, types.ErrUnsupportedMatcher, types.ErrUnsupportedOperator},
		{"historical float value", `{"type":"historical","definition":{"events":[{"a":"b"}],"matcher":"ge","value":1.5}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"historical missing value", `{"type":"historical","definition":{"events":[{"a":"b"}],"matcher":"ge"}}`, types.ErrMissingField, types.ErrMalformedInput},
		{"historical bad from", `{"type":"historical","definition":{"events":[{"a":"b"}],"matcher":"ge","value":1,"from":"yesterday"}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
		{"historical bad search type", `{"type":"historical","definition":{"events":[{"a":"b"}],"matcher":"ge","value":1,"searchType":"most"}}`, types.ErrUnsupportedSearchType, types.ErrUnsupportedOperator},
		{"historical event not object", `{"type":"historical","definition":{"events":["a"],"matcher":"ge","value":1}}`, types.ErrWrongFieldType, types.ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := p.Condition(mustDecode(tt.json))
			if err == nil {
				t.Fatalf("Condition() = %v, want error", e)
			}
			if e != nil {
				t.Errorf("Condition() returned partial tree %v", e)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("error = %v, want %v", err, tt.sentinel)
			}
			if !errors.Is(err, tt.category) {
				t.Errorf("error = %v, want category %v", err, tt.category)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %T, want *ParseError", err)
			}
			if pe.Fragment == "" {
				t.Error("ParseError.Fragment is empty")
			}
		})
	}
}

func TestConditionErrorPath(t *testing.T) {
	doc := mustDecode(`{"type":"group","definition":{"logic":"or","conditions":[
		{"type":"matcher","definition":{"key":"a","matcher":"ex"}},
		{"type":"matcher","definition":{"key":"b","matcher":"zz"}}
	]}}`)

	_, err := NewParser(nil).Condition(doc)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ParseError", err)
	}
	want := "condition.definition.conditions[1].definition"
	if pe.Path != want {
		t.Errorf("Path = %q, want %q", pe.Path, want)
	}
	if !strings.Contains(pe.Fragment, `"zz"`) {
		t.Errorf("Fragment = %q, want offending definition", pe.Fragment)
	}
}

func TestConditionGroup(t *testing.T) {
	e, err := NewParser(nil).Condition(groupCondition("AND",
		matcherCondition("~type", "eq", "lifecycle"),
		groupCondition("or",
			matcherCondition("os", "eq", "iOS"),
			matcherCondition("os", "eq", "Android"),
		),
	))
	if err != nil {
		t.Fatalf("Condition() error = %v", err)
	}
	l, ok := e.(*Logical)
	if !ok || l.Operator != LogicAnd || len(l.Operands) != 2 {
		t.Fatalf("Condition() = %v, want and-Logical with 2 operands", e)
	}

	tests := []struct {
		values map[string]any
		want   bool
	}{
		{map[string]any{"~type": "lifecycle", "os": "Android"}, true},
		{map[string]any{"~type": "lifecycle", "os": "Windows"}, false},
		{map[string]any{"~type": "analytics", "os": "iOS"}, false},
	}
	for _, tt := range tests {
		if got := e.Evaluate(ctxWith(tt.values)); got != tt.want {
			t.Errorf("Evaluate(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

func TestConditionDepthLimit(t *testing.T) {
	cond := matcherCondition("a", "ex")
	for i := 0; i <= types.MaxConditionDepth; i++ {
		cond = groupCondition("and", cond)
	}
	_, err := NewParser(nil).Condition(cond)
	if !errors.Is(err, types.ErrConditionTooDeep) {
		t.Errorf("error = %v, want ErrConditionTooDeep", err)
	}
}

func TestConditionTooManyValues(t *testing.T) {
	values := make([]any, types.MaxMatcherValues+1)
	for i := range values {
		values[i] = fmt.Sprintf("v%d", i)
	}
	_, err := NewParser(nil).Condition(matcherCondition("a", "eq", values...))
	if !errors.Is(err, types.ErrTooManyValues) {
		t.Errorf("error = %v, want ErrTooManyValues", err)
	}
}

func TestConditionHistorical(t *testing.T) {
	doc := mustDecode(`{"type":"historical","definition":{
		"events":[{"~type":"lifecycle","launches":1},{"~type":"purchase"}],
		"matcher":"ge","value":2,"from":1000,"to":2000,"searchType":"ordered"
	}}`)

	e, err := NewParser(nil).Condition(doc)
	if err != nil {
		t.Fatalf("Condition() error = %v", err)
	}
	c, ok := e.(*Comparison)
	if !ok {
		t.Fatalf("Condition() = %T, want *Comparison", e)
	}
	hc, ok := c.Left.(HistoryCount)
	if !ok {
		t.Fatalf("left = %T, want HistoryCount", c.Left)
	}
	if hc.SearchType != types.SearchOrdered || len(hc.Requests) != 2 {
		t.Errorf("HistoryCount = %+v", hc)
	}
	for i, r := range hc.Requests {
		if r.From != 1000 || r.To != 2000 {
			t.Errorf("request %d window = [%d, %d], want [1000, 2000]", i, r.From, r.To)
		}
	}
	if hc.Requests[0].Mask["launches"] != int64(1) {
		t.Errorf("mask value = %#v, want int64(1)", hc.Requests[0].Mask["launches"])
	}
	if c.Operator != OpGreaterEqual || c.Right.(Literal).Value != int64(2) {
		t.Errorf("comparison = %v", c)
	}
}

func TestConditionHistoricalDefaultSearchType(t *testing.T) {
	e, err := NewParser(nil).Condition(mustDecode(
		`{"type":"historical","definition":{"events":[{"a":"b"}],"matcher":"eq","value":0}}`))
	if err != nil {
		t.Fatalf("Condition() error = %v", err)
	}
	hc := e.(*Comparison).Left.(HistoryCount)
	if hc.SearchType != types.SearchAny {
		t.Errorf("SearchType = %q, want any", hc.SearchType)
	}
	if hc.Requests[0].From != 0 || hc.Requests[0].To != 0 {
		t.Errorf("window = [%d, %d], want [0, 0]", hc.Requests[0].From, hc.Requests[0].To)
	}
}

// Property-based test: N values expand to or(N comparisons)
func TestCondition_PropertyMatcherFanOut(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	p := NewParser(nil)

	properties.Property("N>=2 values yield or-Logical with N comparisons", prop.ForAll(
		func(n int, code string, key string) bool {
			values := make([]any, n)
			for i := range values {
				values[i] = fmt.Sprintf("value-%d", i)
			}
			e, err := p.Condition(matcherCondition(key, code, values...))
			if err != nil {
				return false
			}
			l, ok := e.(*Logical)
			if !ok || l.Operator != LogicOr || len(l.Operands) != n {
				return false
			}
			op, _ := LookupMatcher(code)
			for i, child := range l.Operands {
				c, ok := child.(*Comparison)
				if !ok || c.Operator != op {
					return false
				}
				if c.Left.(Token).Key != key || c.Right.(Literal).Value != values[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 32),
		gen.OneConstOf("eq", "ne", "gt", "ge", "lt", "le", "co", "nc", "sw", "ew"),
		gen.Identifier(),
	))

	properties.Property("one value yields a bare comparison", prop.ForAll(
		func(value int64, code string) bool {
			e, err := p.Condition(matcherCondition("k", code, value))
			if err != nil {
				return false
			}
			_, ok := e.(*Comparison)
			return ok
		},
		gen.Int64(),
		gen.OneConstOf("eq", "ne", "gt", "ge", "lt", "le", "co", "nc", "sw", "ew"),
	))

	properties.TestingRun(t)
}

// Property-based test: unknown group logic always fails
func TestCondition_PropertyInvalidLogic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	p := NewParser(nil)

	properties.Property("logic outside and/or is rejected", prop.ForAll(
		func(logic string) bool {
			_, err := p.Condition(groupCondition(logic, matcherCondition("a", "ex")))
			return errors.Is(err, types.ErrUnsupportedLogic)
		},
		gen.AlphaString().SuchThat(func(s string) bool {
			l := strings.ToLower(s)
			return l != "and" && l != "or"
		}),
	))

	properties.TestingRun(t)
}
