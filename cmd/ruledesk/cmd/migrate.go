package cmd

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/solatis/ruledesk/internal/core/config"
	"github.com/solatis/ruledesk/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	if cfg.Store != config.StoreSQL {
		return nil, nil, fmt.Errorf("--db-url required")
	}
	database, err := db.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	m, err := db.NewMigrator(database, logger)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return m, func() { _ = database.Close() }, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	m, done, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer done()

	applied, err := m.Up(cmd.Context())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	m, done, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer done()

	statuses, err := m.Status(cmd.Context())
	if err != nil {
		return err
	}

	tw := table.NewWriter()
	tw.SetTitle("MIGRATIONS")
	tw.AppendHeader(table.Row{"ID", "State", "Applied at", "Took (ms)", "Checksum"})
	for _, s := range statuses {
		state, took := "pending", ""
		if s.Applied {
			state, took = "applied", strconv.FormatInt(s.ExecutionMs, 10)
		}
		tw.AppendRow(table.Row{s.ID, state, s.AppliedAt, took, shortChecksum(s.Checksum)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)

	fmt.Fprintln(cmd.OutOrStdout(), tw.Render())
	return nil
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
