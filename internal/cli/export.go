package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/memvra/dejavu/internal/export"
)

func newExportCmd() *cobra.Command {
	var (
		format string
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a savings report from the journal",
		Long: `Render the journal as a report: response tiers, tokens saved, compression
and the most recent responses.

Examples:
  dejavu export                          # markdown to stdout
  dejavu export --format json -o report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, ok := export.Get(format)
			if !ok {
				return fmt.Errorf("unknown format %q (valid: %s)", format, strings.Join(export.ValidFormats(), ", "))
			}

			j, cfg, err := requireJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			savings, err := j.Savings()
			if err != nil {
				return err
			}
			records, err := j.Recent(limit)
			if err != nil {
				return err
			}

			out, err := exp.Export(export.ExportData{
				GeneratedAt: time.Now(),
				TargetRatio: cfg.Engine.TargetRatio,
				Savings:     savings,
				Records:     records,
			})
			if err != nil {
				return fmt.Errorf("export %s: %w", format, err)
			}

			if output == "" || output == "-" {
				fmt.Print(out)
				return nil
			}
			if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Printf("Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "report format: markdown, json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of recent responses to include")
	return cmd
}
