package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/solatis/launchrules/internal/history"
	"github.com/solatis/launchrules/internal/rules"
	"github.com/solatis/launchrules/internal/schema"
	"github.com/solatis/launchrules/internal/types"
)

type api struct {
	engine    *rules.Engine
	history   *history.Store
	validator Validator
	logger    *slog.Logger
}

// EventResponse is returned by POST /v1/events.
type EventResponse struct {
	EventID      types.EventID       `json:"event_id,omitempty"`
	Consequences []rules.Consequence `json:"consequences"`
}

// RuleSetResponse describes the active rule set.
type RuleSetResponse struct {
	ID       types.RuleSetID `json:"id"`
	Version  string          `json:"version"`
	Rules    int             `json:"rules"`
	ParsedAt time.Time       `json:"parsed_at"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error    string               `json:"error"`
	Path     string               `json:"path,omitempty"`
	Fragment string               `json:"fragment,omitempty"`
	Details  []schema.SchemaError `json:"details,omitempty"`
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"ruleset": a.engine.RuleSet() != nil,
	})
}

func (a *api) readyz(w http.ResponseWriter, r *http.Request) {
	if a.engine.RuleSet() == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no active rule set"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// postEvent evaluates the event and then records it, so historical
// conditions never count the event being evaluated. ?record=false skips
// recording.
func (a *api) postEvent(w http.ResponseWriter, r *http.Request) {
	body, ok := a.readBody(w, r)
	if !ok {
		return
	}

	event, err := rules.DecodeEvent(body)
	if err != nil {
		a.writeError(w, err)
		return
	}

	consequences := a.engine.Process(event)
	if consequences == nil {
		consequences = []rules.Consequence{}
	}

	resp := EventResponse{EventID: event.ID, Consequences: consequences}
	if a.history != nil && r.URL.Query().Get("record") != "false" {
		id, err := a.history.Record(r.Context(), event)
		if err != nil {
			a.logger.Error("Failed to record event", "error", err, "name", event.Name)
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to record event"})
			return
		}
		resp.EventID = id
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *api) getRules(w http.ResponseWriter, r *http.Request) {
	rs := a.engine.RuleSet()
	if rs == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no active rule set"})
		return
	}
	writeJSON(w, http.StatusOK, ruleSetResponse(rs))
}

func (a *api) putRules(w http.ResponseWriter, r *http.Request) {
	body, ok := a.readBody(w, r)
	if !ok {
		return
	}

	if a.validator != nil {
		if err := a.validator.Validate(body); err != nil {
			a.writeError(w, err)
			return
		}
	}

	rs, err := a.engine.Load(body)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ruleSetResponse(rs))
}

func (a *api) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	return body, true
}

// writeError maps parse and validation failures to 400 and 422.
func (a *api) writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var pe *rules.ParseError
	if errors.As(err, &pe) {
		resp.Path = pe.Path
		resp.Fragment = pe.Fragment
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		resp.Details = ve.Errors
	}

	switch {
	case errors.Is(err, types.ErrInvalidJSON):
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, types.ErrMalformedInput), errors.Is(err, types.ErrUnsupportedOperator):
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	default:
		a.logger.Error("Unhandled request error", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func ruleSetResponse(rs *rules.RuleSet) RuleSetResponse {
	return RuleSetResponse{
		ID:       rs.ID,
		Version:  rs.Version,
		Rules:    len(rs.Rules),
		ParsedAt: rs.ParsedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
