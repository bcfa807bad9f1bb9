package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/memvra/dejavu/internal/engine"
)

func (s *Server) handleAddMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}
	sessionID := req.GetString("session_id", "")

	resp, err := s.engine.AddMessageWithSession(ctx, text, sessionID)
	if err != nil && !errors.Is(err, engine.ErrRotation) {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add message: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "tier: %s\n", resp.Tier)
	if resp.IsAdaptive() {
		fmt.Fprintf(&sb, "unit: %s\nsimilarity: %.3f\ntokens saved: %d\n", resp.ReferencedUnit, resp.Similarity, resp.TokensSaved)
	}
	sb.WriteString("\n")
	sb.WriteString(resp.Content)
	if err != nil {
		fmt.Fprintf(&sb, "\n\nwarning: %v", err)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleFindSimilar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}
	k := req.GetInt("k", 5)
	if k <= 0 {
		return mcp.NewToolResultError(fmt.Sprintf("k must be positive, got %d", k)), nil
	}

	results, err := s.engine.FindSimilar(ctx, query, k)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No similar units."), nil
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s  similarity %.3f  entries %d  keywords %s\n",
			i+1, r.Unit.ID, r.Similarity, r.Unit.Len(), strings.Join(r.Unit.Keywords, ", "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetUnit(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	p, ok := s.engine.GetUnit(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unit %s not found", id)), nil
	}

	contents, err := s.engine.DecompressUnit(id)
	if errors.Is(err, engine.ErrNotFound) {
		// Open unit: entries are not compressed yet.
		contents = make([]string, p.Len())
		for i := range p.Entries {
			contents[i] = p.Entries[i].Content
		}
	} else if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to decompress unit: %v", err)), nil
	}

	sum := p.Summarize()
	var sb strings.Builder
	fmt.Fprintf(&sb, "unit %s  closed=%v  entries=%d  ratio=%.1fx  accessed=%d\n",
		sum.ID, sum.Closed, sum.Entries, sum.Ratio, sum.AccessCount)
	if len(sum.Keywords) > 0 {
		fmt.Fprintf(&sb, "keywords: %s\n", strings.Join(sum.Keywords, ", "))
	}
	for i, c := range contents {
		fmt.Fprintf(&sb, "\n[%d %s] %s", i, p.Entries[i].Kind, c)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleForceRotate(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.engine.ForceRotate()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rotation failed: %v", err)), nil
	}
	if p == nil {
		return mcp.NewToolResultText("No open unit."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Rotated unit %s (%d entries, %.1fx).", p.ID, p.Len(), p.CompressionRatio())), nil
}

func (s *Server) handleVacuum(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.engine.Vacuum()
	return mcp.NewToolResultText(fmt.Sprintf("Evicted %d expired unit(s).", n)), nil
}

func (s *Server) handleStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.engine.Stats()
	out := struct {
		engine.Stats
		CacheUsage  float64 `json:"cache_usage_percent"`
		MeetsTarget bool    `json:"meets_target"`
	}{st, st.CacheUsage(), st.MeetsTarget(s.engine.Config().TargetRatio)}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode stats: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
