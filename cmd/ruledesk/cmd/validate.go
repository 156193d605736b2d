package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/ruledesk/internal/store"
	"github.com/solatis/ruledesk/internal/validation"
	"github.com/solatis/ruledesk/internal/viewer"
)

var validateCmd = &cobra.Command{
	Use:   "validate RULES_FILE",
	Short: "Validate a rule file against the catalog",
	Long: `Validate checks every rule in a YAML or JSON rule file against its
category schema and destination constraints, printing each failing path.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("tree", false, "render each failing rule tree with per-node errors")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	showTree, _ := cmd.Flags().GetBool("tree")

	list, err := store.LoadFixtures(args[0])
	if err != nil {
		return err
	}
	cat, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	cache := validation.NewCache(cat)

	out := cmd.OutOrStdout()
	invalid := 0
	for i := range list {
		r := &list[i]
		errs, err := cache.ValidateRule(ctx, r)
		if err != nil {
			return fmt.Errorf("validate %q: %w", r.Name, err)
		}
		if len(errs) == 0 {
			fmt.Fprintf(out, "ok    %s\n", r.Name)
			continue
		}

		invalid++
		fmt.Fprintf(out, "FAIL  %s\n", r.Name)
		for _, p := range errs.Paths() {
			fmt.Fprintf(out, "      %s: %s\n", p, errs[p])
		}
		if !showTree {
			continue
		}
		// Unknown categories and destinations have no tree validator.
		if compiled, err := cache.Get(ctx, r.Category, r.Destination); err == nil {
			res := compiled.Tree.ValidateTree(r.Rule)
			fmt.Fprintln(out, viewer.TreeView{Title: r.Name, Nodes: res.Nodes}.Render(r.Rule))
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d rules failed validation", invalid, len(list))
	}
	return nil
}
