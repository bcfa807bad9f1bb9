// Package adapter provides the embedding providers the similarity index
// depends on.
package adapter

import (
	"fmt"
	"strings"
)

// Provider name constants.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Providers lists every supported provider name.
func Providers() []string {
	return []string{ProviderHash, ProviderOllama, ProviderOpenAI, ProviderGemini}
}

// ModelInfo describes an embedding model.
type ModelInfo struct {
	Name      string
	Provider  string
	Dimension int // 0 if the provider decides at runtime
}

// Provider is an Embedder that can describe itself.
type Provider interface {
	Embedder
	Info() ModelInfo
}

// New constructs the embedding provider with the given name.
//
//   - provider: "hash", "ollama", "openai", "gemini"
//   - model: embedding model name (empty = provider default)
//   - apiKey: provider API key (empty = read from env in the concrete adapter)
//   - host: base URL override for ollama, openai and gemini
func New(provider, model, apiKey, host string) (Provider, error) {
	switch provider {
	case ProviderHash, "":
		return NewHash(DefaultHashDimension), nil
	case ProviderOllama:
		if host == "" {
			host = "http://localhost:11434"
		}
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllama(host, model), nil
	case ProviderOpenAI:
		return NewOpenAI(apiKey, model, host), nil
	case ProviderGemini:
		return NewGemini(apiKey, model, host), nil
	default:
		return nil, fmt.Errorf("adapter: unknown provider %q; valid providers: %s",
			provider, strings.Join(Providers(), ", "))
	}
}
