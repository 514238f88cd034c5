package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/launchrules/internal/core/db"
	"github.com/solatis/launchrules/internal/history"
	"github.com/solatis/launchrules/internal/rules"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate one event against a rule set and print the consequences",
	RunE:  runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().String("rules", "", "rule set file (defaults to the configured rules file)")
	evalCmd.Flags().String("event", "", "event JSON file (- for stdin)")
	evalCmd.Flags().Bool("history", false, "resolve historical conditions against the configured database")
	_ = evalCmd.MarkFlagRequired("event")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	eventPath, _ := cmd.Flags().GetString("event")
	event, err := readEvent(cmd, eventPath)
	if err != nil {
		return err
	}

	engineCfg := rules.EngineConfig{Logger: logger}
	if useHistory, _ := cmd.Flags().GetBool("history"); useHistory {
		conn, err := openDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer conn.Close()
		q, err := db.LoadQueries(conn)
		if err != nil {
			return fmt.Errorf("failed to load queries: %w", err)
		}
		engineCfg.History = history.NewStore(q, history.Config{
			QueryTimeout: cfg.Database.QueryTimeout,
			Logger:       logger,
		})
	}

	engine := rules.NewEngine(engineCfg)
	data, err := os.ReadFile(cfg.Rules.File)
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}
	if _, err := engine.Load(data); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	consequences := engine.Process(event)
	if consequences == nil {
		consequences = []rules.Consequence{}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(consequences)
}
