package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostwright/hostwright/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		target string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded invocations",
		Long: `Show the durable invocation history from the sqlite database.
Requires --db; the in-memory history only lives for one process.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databasePath == "" {
				return fmt.Errorf("history requires --db")
			}
			store, err := stores.NewSQLiteStore(stores.Config{Path: databasePath})
			if err != nil {
				return err
			}
			if err := store.Init(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.ListInvocations(cmd.Context(), target, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-10s %-10s %-24s exit=%d attempts=%d %s\n",
					e.StartedAt.Format("2006-01-02 15:04:05"),
					e.Target, e.Status, e.Task, e.ExitCode, e.Attempts, e.Command)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "only show one target")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum entries to show")

	return cmd
}
