package adapter

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// openaiAdapter embeds through the OpenAI embeddings API.
type openaiAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAI creates an OpenAI embedder. If apiKey is empty, OPENAI_API_KEY is
// used; an empty model selects text-embedding-3-small; baseURL overrides the
// API endpoint when set.
func NewOpenAI(apiKey, model, baseURL string) Provider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	return &openaiAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  m,
	}
}

func (o *openaiAdapter) Info() ModelInfo {
	dim := 0
	if o.model == openai.SmallEmbedding3 {
		dim = 1536
	}
	return ModelInfo{
		Name:      string(o.model),
		Provider:  ProviderOpenAI,
		Dimension: dim,
	}
}

func (o *openaiAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	result := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(result) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		result[d.Index] = d.Embedding
	}
	return result, nil
}
