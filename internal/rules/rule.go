package rules

import (
	"time"

	"github.com/solatis/launchrules/internal/types"
)

// Rule is an immutable condition tree with its ordered consequences.
type Rule struct {
	Condition    Evaluable
	Consequences []Consequence
	ReEvaluate   bool
}

// RuleSet is the full, immutable collection of rules from one document.
type RuleSet struct {
	ID       types.RuleSetID
	Version  string
	Rules    []Rule
	ParsedAt time.Time
}

// DefaultVersion is used when a document omits "version".
const DefaultVersion = "0"

// Rule builds a Rule from its JSON object.
func (p *Parser) Rule(obj map[string]any) (*Rule, error) {
	r, err := p.rule(obj, "rule", false, nil)
	if err != nil {
		p.logFailure("Rejected rule", err)
		return nil, err
	}
	return r, nil
}

// rule parses one rule. reEvaluate is the document default, overridden by
// the rule's own meta.reEvaluate. orders holds document key orders from
// keyOrders and may be nil.
func (p *Parser) rule(obj map[string]any, path string, reEvaluate bool, orders map[string][]string) (*Rule, error) {
	condObj, err := requireObject(obj, "condition", path)
	if err != nil {
		return nil, err
	}
	list, err := requireList(obj, "consequences", path)
	if err != nil {
		return nil, err
	}

	cond, err := p.condition(condObj, childPath(path, "condition"), 0)
	if err != nil {
		return nil, err
	}

	consequences := make([]Consequence, 0, len(list))
	for i, item := range list {
		cpath := indexPath(path, "consequences", i)
		cobj, ok := item.(map[string]any)
		if !ok {
			return nil, newParseError(cpath, item, types.ErrInvalidConsequence, "consequence must be an object")
		}
		c, err := parseConsequence(cobj, cpath, orders)
		if err != nil {
			return nil, err
		}
		consequences = append(consequences, c)
	}

	if v, ok := obj["meta"]; ok && v != nil {
		meta, ok := v.(map[string]any)
		if !ok {
			return nil, newParseError(path, obj, types.ErrWrongFieldType, "\"meta\" must be an object")
		}
		b, set, err := optionalBool(meta, "reEvaluate", childPath(path, "meta"))
		if err != nil {
			return nil, err
		}
		if set {
			reEvaluate = b
		}
	}

	return &Rule{
		Condition:    cond,
		Consequences: consequences,
		ReEvaluate:   reEvaluate,
	}, nil
}

// RuleSet parses a complete rules document. Any rule failure rejects the
// whole document.
func (p *Parser) RuleSet(data []byte) (*RuleSet, error) {
	obj, err := DecodeObject(data)
	if err != nil {
		p.logger.Warn("Rejected rule set", "error", err)
		return nil, err
	}
	return p.ruleSetObject(obj, keyOrders(data))
}

func (p *Parser) ruleSetObject(obj map[string]any, orders map[string][]string) (*RuleSet, error) {
	rs, err := p.ruleSet(obj, orders)
	if err != nil {
		p.logFailure("Rejected rule set", err)
		return nil, err
	}
	p.logger.Debug("Parsed rule set",
		"id", rs.ID,
		"version", rs.Version,
		"rules", len(rs.Rules),
	)
	return rs, nil
}

func (p *Parser) ruleSet(obj map[string]any, orders map[string][]string) (*RuleSet, error) {
	version := DefaultVersion
	switch v := obj["version"].(type) {
	case nil:
	case string:
		version = v
	case int64, float64:
		version = formatText(v)
	default:
		return nil, newParseError("", obj, types.ErrWrongFieldType, "\"version\" must be a string or number")
	}

	reEvaluable, _, err := optionalBool(obj, "reEvaluable", "")
	if err != nil {
		return nil, err
	}

	list, err := requireList(obj, "rules", "")
	if err != nil {
		return nil, err
	}

	rules := make([]Rule, 0, len(list))
	for i, item := range list {
		path := indexPath("", "rules", i)
		robj, ok := item.(map[string]any)
		if !ok {
			return nil, newParseError(path, item, types.ErrWrongFieldType, "rule must be an object")
		}
		r, err := p.rule(robj, path, reEvaluable, orders)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}

	return &RuleSet{
		ID:       types.NewRuleSetID(),
		Version:  version,
		Rules:    rules,
		ParsedAt: time.Now().UTC(),
	}, nil
}

// ParseRuleSet parses a rules document without logging.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	return NewParser(nil).RuleSet(data)
}
