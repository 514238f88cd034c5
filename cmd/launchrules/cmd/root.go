package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/launchrules/internal/core/config"
	"github.com/solatis/launchrules/internal/core/db"
	"github.com/solatis/launchrules/internal/core/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "launchrules",
	Short:        "launchrules event rules engine",
	Long:         `launchrules evaluates events against JSON rule sets and dispatches the consequences of matching rules.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path")
	pf.String("db", "", "database connection URL (sqlite://path or postgres://...)")
	pf.String("log-level", "", "log level (trace, debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration and builds the logger shared by every command.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, _, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// openDatabase opens the history database and checks that every migration
// has been applied.
func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sqlx.DB, error) {
	conn, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", db.Redact(cfg.Database.URL), err)
	}

	m, err := db.NewMigrator(conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	statuses, err := m.Status(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			conn.Close()
			return nil, fmt.Errorf("migration %s not applied - run 'launchrules migrate' first", s.ID)
		}
	}
	return conn, nil
}
