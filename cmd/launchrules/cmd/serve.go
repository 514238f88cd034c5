package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/solatis/launchrules/internal/core/auth"
	"github.com/solatis/launchrules/internal/core/config"
	"github.com/solatis/launchrules/internal/core/db"
	"github.com/solatis/launchrules/internal/core/metrics"
	"github.com/solatis/launchrules/internal/core/server"
	"github.com/solatis/launchrules/internal/core/watcher"
	"github.com/solatis/launchrules/internal/history"
	"github.com/solatis/launchrules/internal/rules"
	"github.com/solatis/launchrules/internal/schema"
)

// Version is the launchrules release reported at startup.
const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, gRPC health service and rules watcher",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("rules", "", "rule set file")
	serveCmd.Flags().Bool("watch", true, "reload the rule set file on change")
	serveCmd.Flags().Int("http-port", 0, "HTTP API port")
	serveCmd.Flags().Int("grpc-port", 0, "gRPC health port (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	conn, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	queries, err := db.LoadQueries(conn)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	keys, err := config.SigningKeys()
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}
	if len(keys) == 0 {
		logger.Warn("No signing keys configured, rule uploads are unauthenticated")
	}

	m := metrics.New()
	store := history.NewStore(queries, history.Config{
		QueryTimeout: cfg.Database.QueryTimeout,
		Logger:       logger,
		Observer:     m,
	})

	var grpcServer *server.GRPCServer
	if cfg.GRPC.Port != 0 {
		grpcServer = server.NewGRPCServer(cfg.HTTP.Host, cfg.GRPC.Port, logger)
	}

	engine := rules.NewEngine(rules.EngineConfig{
		History:  store,
		Logger:   logger,
		Observer: m,
		OnReplace: func(rs *rules.RuleSet) {
			if grpcServer != nil {
				grpcServer.SetReady(rs != nil)
			}
		},
	})

	var validator *schema.Validator
	if cfg.Rules.ValidateSchema {
		if validator, err = schema.NewValidator(); err != nil {
			return err
		}
	}

	w, err := newWatcher(cfg, engine, validator, logger)
	if err != nil {
		return err
	}
	if _, err := w.LoadNow(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		logger.Warn("Rules file not found, starting without an active rule set", "path", cfg.Rules.File)
	}

	opts := server.Options{
		Engine:         engine,
		History:        store,
		Verifier:       auth.NewVerifier(keys, logger),
		Metrics:        m,
		Logger:         logger,
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	}
	if validator != nil {
		opts.Validator = validator
	}
	httpServer, err := server.NewHTTPServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	pruner, err := startPruner(cfg, store, logger)
	if err != nil {
		return err
	}
	defer func() { <-pruner.Stop().Done() }()

	logger.Info("Starting launchrules",
		"version", Version,
		"http_port", cfg.HTTP.Port,
		"grpc_port", cfg.GRPC.Port,
		"rules", cfg.Rules.File,
		"db", db.Redact(cfg.Database.URL),
	)

	errChan := make(chan error, 3)
	go func() { errChan <- httpServer.Start(ctx) }()
	if grpcServer != nil {
		go func() { errChan <- grpcServer.Start(ctx) }()
	}
	if cfg.Rules.Watch {
		go func() { errChan <- w.Run(ctx) }()
	}

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("Component failed, shutting down", "error", err)
		}
		stop()
		shutdown(httpServer, grpcServer, logger)
		return err
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
		shutdown(httpServer, grpcServer, logger)
		return nil
	}
}

func newWatcher(cfg *config.Config, engine *rules.Engine, validator *schema.Validator, logger *slog.Logger) (*watcher.Watcher, error) {
	var v watcher.Validator
	if validator != nil {
		v = validator
	}
	return watcher.New(watcher.Config{
		Path:     cfg.Rules.File,
		Debounce: cfg.Rules.Debounce,
	}, engine, v, logger)
}

// startPruner schedules deletion of history older than the retention window.
// Zero retention or an empty schedule keeps history forever.
func startPruner(cfg *config.Config, store *history.Store, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithLogger(cronLogger{logger}))
	if cfg.Database.Retention > 0 && cfg.Database.PruneSchedule != "" {
		retention := cfg.Database.Retention
		_, err := c.AddFunc(cfg.Database.PruneSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := store.Prune(ctx, time.Now().Add(-retention)); err != nil {
				logger.Error("History prune failed", "error", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("invalid prune schedule %q: %w", cfg.Database.PruneSchedule, err)
		}
	}
	c.Start()
	return c, nil
}

func shutdown(httpServer *server.HTTPServer, grpcServer *server.GRPCServer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	if grpcServer != nil {
		if err := grpcServer.Shutdown(ctx); err != nil {
			logger.Error("gRPC shutdown failed", "error", err)
		}
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
