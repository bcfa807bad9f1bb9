package export

import (
	"fmt"
	"strings"
)

// MarkdownExporter renders a savings report as markdown.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(data ExportData) (string, error) {
	s := data.Savings

	var b strings.Builder
	b.WriteString("# dejavu report\n\n")
	if !data.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated %s_\n\n", data.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	b.WriteString("## Responses\n\n")
	b.WriteString("| Tier | Count | Share |\n|------|-------|-------|\n")
	for _, tier := range []string{"reference", "partial", "full"} {
		n := s.ByTier[tier]
		fmt.Fprintf(&b, "| %s | %d | %s |\n", tier, n, percent(n, s.Responses))
	}
	fmt.Fprintf(&b, "| **total** | %d | |\n\n", s.Responses)
	fmt.Fprintf(&b, "- Cache hit rate: %.1f%%\n", hitRate(s))
	fmt.Fprintf(&b, "- Tokens saved: ~%d\n\n", s.TokensSaved)

	b.WriteString("## Compression\n\n")
	fmt.Fprintf(&b, "- Rotations: %d\n", s.Rotations)
	fmt.Fprintf(&b, "- Average ratio: %.1fx", s.AverageRatio)
	if data.TargetRatio > 0 {
		status := "below"
		if s.AverageRatio >= data.TargetRatio {
			status = "meets"
		}
		fmt.Fprintf(&b, " (%s target %.0fx)", status, data.TargetRatio)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Evictions: %d\n", s.Evictions)

	if len(data.Records) > 0 {
		b.WriteString("\n## Recent responses\n\n")
		for _, r := range data.Records {
			fmt.Fprintf(&b, "- `%s` **%s**", r.CreatedAt.UTC().Format("2006-01-02 15:04"), r.Tier)
			if r.UnitID != "" {
				fmt.Fprintf(&b, " (%.1f%%, unit %s)", r.Similarity*100, r.UnitID)
			}
			fmt.Fprintf(&b, ": %s\n", strings.ReplaceAll(r.Query, "\n", " "))
		}
	}
	return b.String(), nil
}
