package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/solatis/launchrules/internal/core/auth"
	"github.com/solatis/launchrules/internal/core/config"
)

var signCmd = &cobra.Command{
	Use:   "sign FILE",
	Short: "Print the upload signature for a rule set document",
	Long: `Computes the X-Rules-Signature header value for FILE using a signing key
from LR_SIGNING_KEY or LR_SIGNING_KEY_N.`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().String("key-id", "", "signing key id (required when several keys are configured)")
}

func runSign(cmd *cobra.Command, args []string) error {
	keys, err := config.SigningKeys()
	if err != nil {
		return fmt.Errorf("failed to load signing keys: %w", err)
	}
	if len(keys) == 0 {
		return fmt.Errorf("no signing keys configured (set LR_SIGNING_KEY environment variable)")
	}

	keyID, _ := cmd.Flags().GetString("key-id")
	if keyID == "" {
		if len(keys) > 1 {
			ids := make([]string, 0, len(keys))
			for id := range keys {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			return fmt.Errorf("several signing keys configured, pass --key-id (one of %v)", ids)
		}
		for id := range keys {
			keyID = id
		}
	}
	secret, ok := keys[keyID]
	if !ok {
		return fmt.Errorf("signing key %s not configured", keyID)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), auth.FormatSignature(keyID, secret, data))
	return nil
}
