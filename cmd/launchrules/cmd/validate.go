package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/launchrules/internal/rules"
	"github.com/solatis/launchrules/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check a rule set document without loading it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("schema", true, "run JSON schema validation before parsing")
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	if useSchema, _ := cmd.Flags().GetBool("schema"); useSchema {
		v, err := schema.NewValidator()
		if err != nil {
			return err
		}
		if err := v.Validate(data); err != nil {
			var ve *schema.ValidationError
			if errors.As(err, &ve) {
				for _, se := range ve.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], se)
				}
			}
			return err
		}
	}

	rs, err := rules.NewParser(logger).RuleSet(data)
	if err != nil {
		var pe *rules.ParseError
		if errors.As(err, &pe) && pe.Fragment != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n  near: %s\n", args[0], err, pe.Fragment)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (version %s, %d rules)\n", args[0], rs.Version, len(rs.Rules))
	return nil
}
