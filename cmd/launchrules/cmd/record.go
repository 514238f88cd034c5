package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/launchrules/internal/core/db"
	"github.com/solatis/launchrules/internal/history"
	"github.com/solatis/launchrules/internal/rules"
	"github.com/solatis/launchrules/internal/types"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Write an event to the event history",
	RunE:  runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().String("event", "", "event JSON file (- for stdin)")
	_ = recordCmd.MarkFlagRequired("event")
}

func runRecord(cmd *cobra.Command, args []string) error {
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

	conn, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	q, err := db.LoadQueries(conn)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	store := history.NewStore(q, history.Config{Logger: logger})

	id, err := store.Record(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func readEvent(cmd *cobra.Command, path string) (types.Event, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return types.Event{}, fmt.Errorf("failed to read event: %w", err)
	}

	event, err := rules.DecodeEvent(data)
	if err != nil {
		return types.Event{}, fmt.Errorf("invalid event: %w", err)
	}
	return event, nil
}
