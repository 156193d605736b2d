package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/ruledesk/internal/rules"
	"github.com/solatis/ruledesk/internal/store"
	"github.com/solatis/ruledesk/internal/types"
	"github.com/solatis/ruledesk/internal/viewer"
)

var testCmd = &cobra.Command{
	Use:   "test RULES_FILE PAYLOAD_FILE",
	Short: "Test rules against a JSON metadata payload",
	Args:  cobra.ExactArgs(2),
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
	testCmd.Flags().String("rule", "", "only test the rule with this name or id")
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	only, _ := cmd.Flags().GetString("rule")

	list, err := store.LoadFixtures(args[0])
	if err != nil {
		return err
	}
	payload, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	cat, err := openCatalog(ctx)
	if err != nil {
		return err
	}

	engine := rules.NewEngine()
	var outcomes []viewer.TestOutcome
	for i := range list {
		r := &list[i]
		if only != "" && r.Name != only && string(r.ID) != only {
			continue
		}
		o := viewer.TestOutcome{Rule: *r}
		var fields types.FieldSet
		if fields, o.Err = fieldsFor(ctx, cat, r.Category); o.Err == nil {
			o.Result, o.Err = engine.Test(r, fields, payload)
		}
		outcomes = append(outcomes, o)
	}
	if only != "" && len(outcomes) == 0 {
		return fmt.Errorf("no rule named %q in %s", only, args[0])
	}

	fmt.Fprintln(cmd.OutOrStdout(), viewer.RenderTestResults(outcomes))
	return nil
}
