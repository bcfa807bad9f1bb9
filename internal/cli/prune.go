package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old journal rows to reduce database size",
		Long: `Prune old responses, rotations and evictions from the journal.

By default, rows older than [journal] keep_days are removed:

  dejavu prune                    # use keep_days from config
  dejavu prune --older-than 7     # delete rows older than 7 days
  dejavu prune --older-than 0     # clear the journal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cfg, err := requireJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			days := cfg.Journal.KeepDays
			if cmd.Flags().Changed("older-than") {
				days = olderThanDays
			}

			n, err := j.Prune(days)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d journal rows older than %d days\n", n, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete rows older than N days")
	return cmd
}
