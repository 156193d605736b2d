package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/ruledesk/internal/store"
	"github.com/solatis/ruledesk/internal/types"
	"github.com/solatis/ruledesk/internal/viewer"
)

var viewCmd = &cobra.Command{
	Use:   "view [RULES_FILE]",
	Short: "Render rules as tables",
	Long: `View lists the rules of a rule file, or of the configured store when no
file is given. With --tree each rule tree is rendered as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().Bool("tree", false, "render every rule tree")
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	showTree, _ := cmd.Flags().GetBool("tree")

	var list []types.Rule
	if len(args) == 1 {
		var err error
		if list, err = store.LoadFixtures(args[0]); err != nil {
			return err
		}
	} else {
		repo, done, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer done()
		if list, err = repo.List(ctx); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, viewer.RenderRules(list, time.Now()))
	if showTree {
		for _, r := range list {
			fmt.Fprintln(out, viewer.TreeView{Title: r.Name}.Render(r.Rule))
		}
	}
	return nil
}
