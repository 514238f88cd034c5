// Package watcher reloads the rule set file into the engine when it changes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/solatis/launchrules/internal/rules"
)

// DefaultDebounce is used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// ErrUnchanged is returned by LoadNow when the file content matches the
// active rule set.
var ErrUnchanged = errors.New("rule set file unchanged")

// Loader publishes a parsed rule set. *rules.Engine implements it.
type Loader interface {
	Load(data []byte) (*rules.RuleSet, error)
}

// Validator pre-checks a document before it reaches the Loader.
type Validator interface {
	Validate(data []byte) error
}

// Config configures a Watcher.
type Config struct {
	Path     string
	Debounce time.Duration
}

// Watcher loads a rule set file and reloads it on change. A failed reload
// keeps the previously active rule set.
type Watcher struct {
	path      string
	debounce  time.Duration
	loader    Loader
	validator Validator
	logger    *slog.Logger

	mu       sync.Mutex
	lastHash uint64
	loaded   bool
}

// New creates a Watcher. validator may be nil.
func New(cfg Config, loader Loader, validator Validator, logger *slog.Logger) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("rules file path is required")
	}
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve rules path: %w", err)
	}

	return &Watcher{
		path:      path,
		debounce:  debounce,
		loader:    loader,
		validator: validator,
		logger:    logger.With("component", "watcher", "path", path),
	}, nil
}

// LoadNow reads the file and publishes it. Content identical to the last
// successful load is skipped with ErrUnchanged.
func (w *Watcher) LoadNow() (*rules.RuleSet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	sum := xxhash.Sum64(data)
	if w.loaded && sum == w.lastHash {
		return nil, ErrUnchanged
	}

	if w.validator != nil {
		if err := w.validator.Validate(data); err != nil {
			return nil, err
		}
	}

	rs, err := w.loader.Load(data)
	if err != nil {
		return nil, err
	}

	w.lastHash = sum
	w.loaded = true
	return rs, nil
}

// Run watches the file's directory until ctx is cancelled. Editors often
// replace files by rename, so the directory is watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	d := newDebouncer(w.debounce)
	defer d.stop()

	w.logger.Info("Rules watcher started", "debounce_ms", w.debounce.Milliseconds())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Rules watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("Rules file event", "op", event.Op.String())
			d.trigger(w.reload)

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("Rules watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	rs, err := w.LoadNow()
	switch {
	case errors.Is(err, ErrUnchanged):
		w.logger.Debug("Rules file unchanged, skipping reload")
	case err != nil:
		w.logger.Error("Rules reload failed, keeping active rule set", "error", err)
	default:
		w.logger.Info("Rules reloaded", "id", rs.ID, "rules", len(rs.Rules))
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// debouncer coalesces bursts of triggers into one call after a quiet period.
type debouncer struct {
	interval time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
