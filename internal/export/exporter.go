// Package export renders the journal into shareable reports.
package export

import (
	"fmt"
	"sort"
	"time"

	"github.com/memvra/dejavu/internal/journal"
)

// ExportData is passed to every Exporter.
type ExportData struct {
	GeneratedAt time.Time
	TargetRatio float64
	Savings     journal.Savings
	Records     []journal.Record
}

// Exporter renders ExportData to a string in a specific format.
type Exporter interface {
	Export(data ExportData) (string, error)
}

// registry maps format names to Exporter implementations.
var registry = map[string]Exporter{
	"markdown": &MarkdownExporter{},
	"json":     &JSONExporter{},
}

// Get returns the Exporter registered under name, and whether it was found.
func Get(name string) (Exporter, bool) {
	e, ok := registry[name]
	return e, ok
}

// ValidFormats returns the supported export format names, sorted.
func ValidFormats() []string {
	formats := make([]string, 0, len(registry))
	for k := range registry {
		formats = append(formats, k)
	}
	sort.Strings(formats)
	return formats
}

// hitRate returns the share of responses answered from the cache, in percent.
func hitRate(s journal.Savings) float64 {
	if s.Responses == 0 {
		return 0
	}
	adaptive := s.Responses - s.ByTier["full"]
	return float64(adaptive) / float64(s.Responses) * 100
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}
