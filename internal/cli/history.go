package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent responses from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, _, err := requireJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			records, err := j.Recent(limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Println("No responses recorded.")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s  %-9s  %5.1f%%  %s\n",
					r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Tier, r.Similarity*100, truncateLabel(r.Query, 70))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of responses to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
