package export

import (
	"encoding/json"
	"time"
)

// JSONExporter renders a savings report as structured JSON.
type JSONExporter struct{}

type jsonOutput struct {
	GeneratedAt *time.Time     `json:"generated_at,omitempty"`
	Summary     jsonSummary    `json:"summary"`
	Responses   []jsonResponse `json:"responses"`
}

type jsonSummary struct {
	Responses    int            `json:"responses"`
	ByTier       map[string]int `json:"by_tier"`
	HitRate      float64        `json:"hit_rate_percent"`
	TokensSaved  int            `json:"tokens_saved"`
	Rotations    int            `json:"rotations"`
	AverageRatio float64        `json:"average_ratio"`
	TargetRatio  float64        `json:"target_ratio,omitempty"`
	Evictions    int            `json:"evictions"`
}

type jsonResponse struct {
	Query       string    `json:"query"`
	Tier        string    `json:"tier"`
	UnitID      string    `json:"unit_id,omitempty"`
	Similarity  float64   `json:"similarity"`
	TokensSaved int       `json:"tokens_saved"`
	SessionID   string    `json:"session_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e *JSONExporter) Export(data ExportData) (string, error) {
	s := data.Savings
	out := jsonOutput{
		Summary: jsonSummary{
			Responses:    s.Responses,
			ByTier:       s.ByTier,
			HitRate:      hitRate(s),
			TokensSaved:  s.TokensSaved,
			Rotations:    s.Rotations,
			AverageRatio: s.AverageRatio,
			TargetRatio:  data.TargetRatio,
			Evictions:    s.Evictions,
		},
		Responses: make([]jsonResponse, 0, len(data.Records)),
	}
	if out.Summary.ByTier == nil {
		out.Summary.ByTier = map[string]int{}
	}
	if !data.GeneratedAt.IsZero() {
		t := data.GeneratedAt.UTC()
		out.GeneratedAt = &t
	}
	for _, r := range data.Records {
		out.Responses = append(out.Responses, jsonResponse{
			Query:       r.Query,
			Tier:        r.Tier,
			UnitID:      r.UnitID,
			Similarity:  r.Similarity,
			TokensSaved: r.TokensSaved,
			SessionID:   r.SessionID,
			CreatedAt:   r.CreatedAt,
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
