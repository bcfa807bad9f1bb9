package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memvra/dejavu/internal/response"
)

func newSavingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "savings",
		Short: "Summarise tokens saved by adaptive responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cfg, err := requireJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			s, err := j.Savings()
			if err != nil {
				return err
			}

			fmt.Printf("Responses:     %d\n", s.Responses)
			for _, tier := range []response.Tier{response.TierReference, response.TierPartial, response.TierFull} {
				n := s.ByTier[string(tier)]
				pct := 0.0
				if s.Responses > 0 {
					pct = float64(n) / float64(s.Responses) * 100
				}
				fmt.Printf("  %-10s   %d (%.1f%%)\n", tier, n, pct)
			}
			fmt.Printf("Tokens saved:  ~%d\n", s.TokensSaved)
			fmt.Printf("Rotations:     %d (avg %.1fx, target %.0fx)\n", s.Rotations, s.AverageRatio, cfg.Engine.TargetRatio)
			fmt.Printf("Evictions:     %d\n", s.Evictions)
			return nil
		},
	}
}
