// Package metrics exposes Prometheus collectors for the rules engine, the
// event history store, and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solatis/launchrules/internal/types"
)

const namespace = "launchrules"

// Metrics holds every collector. It implements rules.Observer and
// history.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ruleSetLoads  *prometheus.CounterVec
	activeRules   prometheus.Gauge
	lastLoad      prometheus.Gauge
	events        prometheus.Counter
	matchedRules  prometheus.Histogram
	evalDuration  prometheus.Histogram
	consequences  *prometheus.CounterVec
	recorded      prometheus.Counter
	historyQuery  *prometheus.HistogramVec
	historyErrors *prometheus.CounterVec
	pruned        prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ruleSetLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ruleset_loads_total",
			Help:      "Rule set load attempts by result",
		}, []string{"result"}),

		activeRules: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ruleset_rules",
			Help:      "Number of rules in the active rule set",
		}),

		lastLoad: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ruleset_last_load_timestamp_seconds",
			Help:      "Unix time of the last successful rule set load",
		}),

		events: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_evaluated_total",
			Help:      "Events evaluated against the active rule set",
		}),

		matchedRules: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_matched_rules",
			Help:      "Rules matched per evaluated event",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}),

		evalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time to evaluate one event",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		consequences: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consequences_dispatched_total",
			Help:      "Consequences dispatched by type",
		}, []string{"type"}),

		recorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_events_recorded_total",
			Help:      "Events written to the history store",
		}),

		historyQuery: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_query_duration_seconds",
			Help:      "Historical query latency by search type",
			Buckets:   prometheus.DefBuckets,
		}, []string{"search_type"}),

		historyErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_query_errors_total",
			Help:      "Failed historical queries by search type",
		}, []string{"search_type"}),

		pruned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_events_pruned_total",
			Help:      "Events removed by retention pruning",
		}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),

		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RuleSetLoaded implements rules.Observer.
func (m *Metrics) RuleSetLoaded(rules int, err error) {
	if err != nil {
		m.ruleSetLoads.WithLabelValues("error").Inc()
		return
	}
	m.ruleSetLoads.WithLabelValues("ok").Inc()
	m.activeRules.Set(float64(rules))
	m.lastLoad.SetToCurrentTime()
}

// EventEvaluated implements rules.Observer.
func (m *Metrics) EventEvaluated(matched int, elapsed time.Duration) {
	m.events.Inc()
	m.matchedRules.Observe(float64(matched))
	m.evalDuration.Observe(elapsed.Seconds())
}

// ConsequenceDispatched implements rules.Observer.
func (m *Metrics) ConsequenceDispatched(consequenceType string) {
	m.consequences.WithLabelValues(consequenceType).Inc()
}

// EventRecorded implements history.Observer.
func (m *Metrics) EventRecorded() {
	m.recorded.Inc()
}

// HistoryQueried implements history.Observer.
func (m *Metrics) HistoryQueried(searchType types.SearchType, elapsed time.Duration, err error) {
	label := string(searchType)
	m.historyQuery.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		m.historyErrors.WithLabelValues(label).Inc()
	}
}

// HistoryPruned implements history.Observer.
func (m *Metrics) HistoryPruned(rows int64) {
	m.pruned.Add(float64(rows))
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
