// internal/rules/engine.go
package rules

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/solatis/launchrules/internal/types"
)

/*
 * Rule set publication and evaluation.
 *
 * The Engine owns the active RuleSet behind an atomic pointer. Loads parse
 * off to the side and publish with a single Store, so concurrent evaluations
 * see either the complete old set or the complete new one. A failed parse
 * leaves the active set untouched.
 *
 * Evaluation takes one snapshot of the pointer, walks rules in document
 * order, and dispatches the consequences of every matching rule in list
 * order. Rules are independent: several may fire for one event.
 *
 * ReEvaluate is carried on each Rule for callers; the engine does not act
 * on it.
 */

// ConsequenceSink receives the consequences of matched rules.
type ConsequenceSink interface {
	Dispatch(c Consequence)
}

// SinkFunc adapts a function to ConsequenceSink.
type SinkFunc func(c Consequence)

// Dispatch implements ConsequenceSink.
func (f SinkFunc) Dispatch(c Consequence) {
	f(c)
}

// Observer receives engine activity for metrics. All methods must be cheap.
type Observer interface {
	RuleSetLoaded(rules int, err error)
	EventEvaluated(matched int, elapsed time.Duration)
	ConsequenceDispatched(consequenceType string)
}

// EngineConfig wires the engine's collaborators. Every field is optional.
type EngineConfig struct {
	Sink      ConsequenceSink
	History   HistoryQuerier
	Logger    *slog.Logger
	Observer  Observer
	OnReplace func(rs *RuleSet)
}

// Engine evaluates events against the active rule set.
type Engine struct {
	active    atomic.Pointer[RuleSet]
	parser    *Parser
	sink      ConsequenceSink
	history   HistoryQuerier
	logger    *slog.Logger
	observer  Observer
	onReplace func(rs *RuleSet)
}

// NewEngine creates an engine with no active rule set.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		parser:    NewParser(logger),
		sink:      cfg.Sink,
		history:   cfg.History,
		logger:    logger,
		observer:  cfg.Observer,
		onReplace: cfg.OnReplace,
	}
}

// Load parses a rules document and, on success, makes it the active set.
func (e *Engine) Load(data []byte) (*RuleSet, error) {
	rs, err := e.parser.RuleSet(data)
	if e.observer != nil {
		n := 0
		if rs != nil {
			n = len(rs.Rules)
		}
		e.observer.RuleSetLoaded(n, err)
	}
	if err != nil {
		return nil, err
	}
	e.Replace(rs)
	return rs, nil
}

// Replace publishes rs as the active rule set and returns the previous one.
// A nil rs clears the engine.
func (e *Engine) Replace(rs *RuleSet) *RuleSet {
	prev := e.active.Swap(rs)
	if rs != nil {
		e.logger.Info("Activated rule set",
			"id", rs.ID,
			"version", rs.Version,
			"rules", len(rs.Rules),
		)
	}
	if e.onReplace != nil {
		e.onReplace(rs)
	}
	return prev
}

// RuleSet returns the active rule set, or nil if none is loaded.
func (e *Engine) RuleSet() *RuleSet {
	return e.active.Load()
}

// Match returns the rules of the active set whose conditions hold in ctx,
// in document order.
func (e *Engine) Match(ctx Context) []*Rule {
	rs := e.active.Load()
	if rs == nil {
		return nil
	}
	return rs.Match(ctx)
}

// Evaluate matches ctx against the active set and dispatches the consequences
// of every matching rule. Returns the dispatched consequences in order.
func (e *Engine) Evaluate(ctx Context) []Consequence {
	start := time.Now()
	matched := e.Match(ctx)

	var dispatched []Consequence
	for _, r := range matched {
		for _, c := range r.Consequences {
			if e.sink != nil {
				e.sink.Dispatch(c)
			}
			if e.observer != nil {
				e.observer.ConsequenceDispatched(c.Type)
			}
			dispatched = append(dispatched, c)
		}
	}

	if e.observer != nil {
		e.observer.EventEvaluated(len(matched), time.Since(start))
	}
	return dispatched
}

// Process evaluates event using the engine's history collaborator.
func (e *Engine) Process(event types.Event) []Consequence {
	dispatched := e.Evaluate(NewEventContext(event, e.history))
	if len(dispatched) > 0 {
		e.logger.Debug("Event matched rules",
			"event_id", event.ID,
			"type", event.Type,
			"source", event.Source,
			"consequences", len(dispatched),
		)
	}
	return dispatched
}

// Match returns the rules whose conditions hold in ctx, in document order.
func (rs *RuleSet) Match(ctx Context) []*Rule {
	var matched []*Rule
	for i := range rs.Rules {
		if rs.Rules[i].Condition.Evaluate(ctx) {
			matched = append(matched, &rs.Rules[i])
		}
	}
	return matched
}
