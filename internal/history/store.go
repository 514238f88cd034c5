// Package history records events and answers historical condition queries.
//
// Each recorded event is reduced to a hash of its identifying mask (see
// Hash). A historical request matches stored events whose hash equals the
// hash of the request mask and whose timestamp falls inside [From, To].
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/solatis/launchrules/internal/core/db"
	"github.com/solatis/launchrules/internal/types"
)

// Observer receives store activity for metrics.
type Observer interface {
	EventRecorded()
	HistoryQueried(searchType types.SearchType, elapsed time.Duration, err error)
	HistoryPruned(rows int64)
}

// Config tunes a Store. Every field is optional.
type Config struct {
	// QueryTimeout bounds one historical query issued during evaluation.
	// Zero disables the bound.
	QueryTimeout time.Duration
	Logger       *slog.Logger
	Observer     Observer

	// Now supplies the "until now" bound for requests with To == 0.
	Now func() time.Time
}

// Store is a SQL-backed event history. It is safe for concurrent use.
type Store struct {
	q        *db.Queries
	timeout  time.Duration
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewStore creates a store over the named history queries.
func NewStore(q *db.Queries, cfg Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		q:        q,
		timeout:  cfg.QueryTimeout,
		logger:   logger,
		observer: cfg.Observer,
		now:      now,
	}
}

// Record stores event and returns its id. An empty id is replaced with a
// fresh UUIDv7; a zero timestamp is replaced with the current time.
func (s *Store) Record(ctx context.Context, event types.Event) (types.EventID, error) {
	id := event.ID
	if id == "" {
		id = types.NewEventID()
	} else if _, err := types.ParseEventID(string(id)); err != nil {
		return "", fmt.Errorf("invalid event id %q: %w", id, err)
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	hash := Hash(MaskOf(event))
	if _, err := s.q.Exec(ctx, "insert-event", string(id), hash, event.Name, ts.UnixMilli()); err != nil {
		return "", fmt.Errorf("failed to record event: %w", err)
	}

	if s.observer != nil {
		s.observer.EventRecorded()
	}
	s.logger.Debug("Recorded event",
		"event_id", id,
		"hash", hash,
		"timestamp_ms", ts.UnixMilli(),
	)
	return id, nil
}

// Query implements rules.HistoryQuerier using the configured timeout.
func (s *Store) Query(requests []types.HistoryRequest, searchType types.SearchType) (int, error) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.QueryContext(ctx, requests, searchType)
}

// QueryContext counts history matching requests.
//
//	any:     sum of the per-request counts
//	ordered: 1 if each request matches an event strictly later than the
//	         previous request's earliest match, else 0
//	all:     1 if every request matches at least one event, else 0
func (s *Store) QueryContext(ctx context.Context, requests []types.HistoryRequest, searchType types.SearchType) (int, error) {
	start := time.Now()

	var (
		count int
		err   error
	)
	switch searchType {
	case types.SearchAny, "":
		count, err = s.queryAny(ctx, requests)
	case types.SearchOrdered:
		count, err = s.queryOrdered(ctx, requests)
	case types.SearchAll:
		count, err = s.queryAll(ctx, requests)
	default:
		err = fmt.Errorf("%w: %q", types.ErrUnsupportedSearchType, searchType)
	}

	if s.observer != nil {
		s.observer.HistoryQueried(searchType, time.Since(start), err)
	}
	if err != nil {
		s.logger.Warn("History query failed",
			"search_type", searchType,
			"requests", len(requests),
			"error", err,
		)
		return 0, err
	}
	return count, nil
}

func (s *Store) queryAny(ctx context.Context, requests []types.HistoryRequest) (int, error) {
	total := 0
	for _, r := range requests {
		n, err := s.count(ctx, r)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (s *Store) queryAll(ctx context.Context, requests []types.HistoryRequest) (int, error) {
	if len(requests) == 0 {
		return 0, nil
	}
	for _, r := range requests {
		n, err := s.count(ctx, r)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, nil
		}
	}
	return 1, nil
}

func (s *Store) queryOrdered(ctx context.Context, requests []types.HistoryRequest) (int, error) {
	if len(requests) == 0 {
		return 0, nil
	}

	var previous int64
	for i, r := range requests {
		from, to := s.window(r)
		if i > 0 && previous+1 > from {
			from = previous + 1
		}

		var first sql.NullInt64
		if err := s.q.Get(ctx, "first-event-after", &first, Hash(r.Mask), from, to); err != nil {
			return 0, fmt.Errorf("failed to query history: %w", err)
		}
		if !first.Valid {
			return 0, nil
		}
		previous = first.Int64
	}
	return 1, nil
}

func (s *Store) count(ctx context.Context, r types.HistoryRequest) (int, error) {
	from, to := s.window(r)
	var n int
	if err := s.q.Get(ctx, "count-events", &n, Hash(r.Mask), from, to); err != nil {
		return 0, fmt.Errorf("failed to query history: %w", err)
	}
	return n, nil
}

// window returns the inclusive epoch-millisecond bounds of r.
func (s *Store) window(r types.HistoryRequest) (int64, int64) {
	to := r.To
	if to == 0 {
		to = s.now().UnixMilli()
	}
	return r.From, to
}

// Prune deletes events recorded before the cutoff and returns how many.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.q.Exec(ctx, "delete-events-before", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	if s.observer != nil {
		s.observer.HistoryPruned(n)
	}
	s.logger.Info("Pruned event history",
		"before", before.UTC().Format(time.RFC3339),
		"deleted", n,
	)
	return n, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.q.Get(ctx, "count-all-events", &n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}
