package rules

import (
	"errors"
	"testing"

	"github.com/solatis/launchrules/internal/types"
)

const rc1Document = `{"version":"1","rules":[{"condition":{"type":"matcher","definition":{"key":"~type","matcher":"eq","values":["com.adobe.eventType.lifecycle"]}},"consequences":[{"id":"RC1","type":"pb","detail":{"timeout":0,"templateurl":"http://www.adobe.com"}}]}]}`

func TestParseRuleSetRoundTrip(t *testing.T) {
	rs, err := ParseRuleSet([]byte(rc1Document))
	if err != nil {
		t.Fatalf("ParseRuleSet() error = %v", err)
	}
	if rs.Version != "1" || len(rs.Rules) != 1 {
		t.Fatalf("ParseRuleSet() = version %q, %d rules", rs.Version, len(rs.Rules))
	}
	if rs.ID == "" || rs.ParsedAt.IsZero() {
		t.Errorf("rule set missing ID or ParsedAt: %+v", rs)
	}

	match := ctxWith(map[string]any{"~type": "com.adobe.eventType.lifecycle"})
	if got := rs.Match(match); len(got) != 1 {
		t.Errorf("Match(lifecycle) = %d rules, want 1", len(got))
	}

	for _, other := range []any{"com.adobe.eventType.analytics", "COM.ADOBE.EVENTTYPE.LIFECYCLE", ""} {
		if got := rs.Match(ctxWith(map[string]any{"~type": other})); len(got) != 0 {
			t.Errorf("Match(%q) = %d rules, want 0", other, len(got))
		}
	}
	if got := rs.Match(ctxWith(nil)); len(got) != 0 {
		t.Errorf("Match(no type) = %d rules, want 0", len(got))
	}
}

func TestParseRuleSetDefaults(t *testing.T) {
	tests := []struct {
		name        string
		json        string
		wantVersion string
		wantReEval  []bool
	}{
		{
			"no version",
			`{"rules":[]}`,
			"0", nil,
		},
		{
			"numeric version",
			`{"version":3,"rules":[]}`,
			"3", nil,
		},
		{
			"document default applies",
			`{"reEvaluable":true,"rules":[{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":[]}]}`,
			"0", []bool{true},
		},
		{
			"rule meta overrides default",
			`{"reEvaluable":true,"rules":[
				{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":[],"meta":{"reEvaluate":false}},
				{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":[],"meta":{}}
			]}`,
			"0", []bool{false, true},
		},
		{
			"rule meta without default",
			`{"rules":[{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":[],"meta":{"reEvaluate":true}}]}`,
			"0", []bool{true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := ParseRuleSet([]byte(tt.json))
			if err != nil {
				t.Fatalf("ParseRuleSet() error = %v", err)
			}
			if rs.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", rs.Version, tt.wantVersion)
			}
			if len(rs.Rules) != len(tt.wantReEval) {
				t.Fatalf("rules = %d, want %d", len(rs.Rules), len(tt.wantReEval))
			}
			for i, want := range tt.wantReEval {
				if rs.Rules[i].ReEvaluate != want {
					t.Errorf("rule %d ReEvaluate = %v, want %v", i, rs.Rules[i].ReEvaluate, want)
				}
			}
		})
	}
}

func TestParseRuleSetAllOrNothing(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		sentinel error
		path     string
	}{
		{
			"invalid JSON",
			`{"rules":[`,
			types.ErrInvalidJSON, "",
		},
		{
			"not an object",
			`[1,2]`,
			types.ErrWrongFieldType, "",
		},
		{
			"missing rules",
			`{"version":"1"}`,
			types.ErrMissingField, "",
		},
		{
			"group without logic fails the rule",
			`{"rules":[
				{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":[]},
				{"condition":{"type":"group","definition":{"conditions":[{"type":"matcher","definition":{"key":"a","matcher":"ex"}}]}},"consequences":[]}
			]}`,
			types.ErrMissingField, "rules[1].condition.definition",
		},
		{
			"missing condition",
			`{"rules":[{"consequences":[]}]}`,
			types.ErrMissingField, "rules[0]",
		},
		{
			"consequences not array",
			`{"rules":[{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":{}}]}`,
			types.ErrWrongFieldType, "rules[0]",
		},
		{
			"one bad consequence rejects the rule",
			`{"rules":[{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":[
				{"id":"ok","type":"pb","detail":{"a":1}},
				{"id":"bad","type":"pb","detail":{}}
			]}]}`,
			types.ErrInvalidConsequence, "rules[0].consequences[1]",
		},
		{
			"rule not object",
			`{"rules":["nope"]}`,
			types.ErrWrongFieldType, "rules[0]",
		},
		{
			"version wrong type",
			`{"version":true,"rules":[]}`,
			types.ErrWrongFieldType, "",
		},
		{
			"reEvaluable wrong type",
			`{"reEvaluable":"yes","rules":[]}`,
			types.ErrWrongFieldType, "",
		},
		{
			"meta wrong type",
			`{"rules":[{"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},"consequences":[],"meta":[]}]}`,
			types.ErrWrongFieldType, "rules[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := ParseRuleSet([]byte(tt.json))
			if rs != nil {
				t.Errorf("ParseRuleSet() returned partial rule set with %d rules", len(rs.Rules))
			}
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("error = %v, want %v", err, tt.sentinel)
			}
			var pe *ParseError
			if errors.As(err, &pe) && pe.Path != tt.path {
				t.Errorf("Path = %q, want %q", pe.Path, tt.path)
			}
		})
	}
}

func TestParseRuleSetIdempotent(t *testing.T) {
	doc := []byte(`{"version":"2","rules":[
		{"condition":{"type":"group","definition":{"logic":"or","conditions":[
			{"type":"matcher","definition":{"key":"~type","matcher":"eq","values":["lifecycle","analytics"]}},
			{"type":"matcher","definition":{"key":"count","matcher":"gt","values":[10]}}
		]}},"consequences":[{"id":"a","type":"pb","detail":{"x":1}}]},
		{"condition":{"type":"matcher","definition":{"key":"user","matcher":"nx"}},"consequences":[{"id":"b","type":"pb","detail":{"y":2}}]}
	]}`)

	first, err := ParseRuleSet(doc)
	if err != nil {
		t.Fatalf("first parse error = %v", err)
	}
	second, err := ParseRuleSet(doc)
	if err != nil {
		t.Fatalf("second parse error = %v", err)
	}
	if first == second || first.ID == second.ID {
		t.Error("two parses share identity")
	}

	contexts := []map[string]any{
		nil,
		{"~type": "lifecycle"},
		{"~type": "other", "count": int64(11)},
		{"~type": "other", "count": "9", "user": "u"},
		{"user": "u"},
	}
	for _, values := range contexts {
		a := first.Match(ctxWith(values))
		b := second.Match(ctxWith(values))
		if len(a) != len(b) {
			t.Fatalf("Match(%v) = %d vs %d rules", values, len(a), len(b))
		}
		for i := range a {
			if a[i].Consequences[0].ID != b[i].Consequences[0].ID {
				t.Errorf("Match(%v)[%d] differs", values, i)
			}
		}
		if first.Rules[0].Condition.String() != second.Rules[0].Condition.String() {
			t.Error("condition trees render differently")
		}
	}
}

func TestParserRule(t *testing.T) {
	r, err := NewParser(nil).Rule(mustDecode(`{
		"condition":{"type":"matcher","definition":{"key":"a","matcher":"ex"}},
		"consequences":[{"id":"1","type":"pb","detail":{"a":1}},{"id":"2","type":"url","detail":{"b":2}}]
	}`))
	if err != nil {
		t.Fatalf("Rule() error = %v", err)
	}
	if len(r.Consequences) != 2 || r.Consequences[0].ID != "1" || r.Consequences[1].ID != "2" {
		t.Errorf("Consequences = %+v, want document order", r.Consequences)
	}
	if r.ReEvaluate {
		t.Error("ReEvaluate = true, want false default")
	}
}
