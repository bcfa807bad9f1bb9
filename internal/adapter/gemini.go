package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

// geminiAdapter embeds through the Gemini REST API.
type geminiAdapter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini creates a Gemini embedder. If apiKey is empty, GEMINI_API_KEY is
// used; an empty model selects text-embedding-004.
func NewGemini(apiKey, model, baseURL string) Provider {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if model == "" {
		model = "text-embedding-004"
	}
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &geminiAdapter{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (g *geminiAdapter) Info() ModelInfo {
	dim := 0
	if g.model == "text-embedding-004" {
		dim = 768
	}
	return ModelInfo{
		Name:      g.model,
		Provider:  ProviderGemini,
		Dimension: dim,
	}
}

type geminiEmbedRequest struct {
	Model   string             `json:"model"`
	Content geminiEmbedContent `json:"content"`
}

type geminiEmbedContent struct {
	Parts []geminiEmbedPart `json:"parts"`
}

type geminiEmbedPart struct {
	Text string `json:"text"`
}

type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (g *geminiAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s", g.baseURL, g.model, g.apiKey)

	results := make([][]float32, 0, len(texts))
	for _, text := range texts {
		values, err := g.embedOne(ctx, url, text)
		if err != nil {
			return nil, err
		}
		results = append(results, values)
	}
	return results, nil
}

func (g *geminiAdapter) embedOne(ctx context.Context, url, text string) ([]float32, error) {
	body, err := json.Marshal(geminiEmbedRequest{
		Model: "models/" + g.model,
		Content: geminiEmbedContent{
			Parts: []geminiEmbedPart{{Text: text}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini embed: status %d: %s", resp.StatusCode, respBody)
	}

	var result geminiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("gemini embed decode: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("gemini api error %d: %s", result.Error.Code, result.Error.Message)
	}
	return result.Embedding.Values, nil
}
