// Package embedding turns text into vectors for the chunk store.
//
// Providers:
//   - ollama (default): local embeddings over HTTP, no API key.
//   - openai: the OpenAI embeddings API, key required.
//   - openai-compatible: any server speaking the OpenAI /v1/embeddings
//     shape (llama.cpp, vLLM, LM Studio), key optional.
package embedding

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Provider generates embedding vectors. Vectors must keep one
// dimensionality per index; switching providers means reindexing.
type Provider interface {
	// GetEmbedding embeds text. purpose is "document" or "query";
	// providers that prefix their prompts use it, the rest ignore it.
	GetEmbedding(text string, purpose string) ([]float32, error)

	GetDocumentEmbedding(text string) ([]float32, error)
	GetQueryEmbedding(text string) ([]float32, error)

	// Name identifies the provider ("ollama", "openai", ...).
	Name() string
	Model() string
	Dimensions() int
}

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	Provider   string // "ollama" (default), "openai", "openai-compatible", "none"
	Model      string // empty takes the provider default
	APIKey     string // required for openai, optional for openai-compatible
	BaseURL    string // empty takes the provider default
	Dimensions int    // 0 takes the provider or server default
	Logger     *zap.Logger
}

func (c ProviderConfig) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// NewProvider creates an embedding provider from the given config.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "ollama":
		return newOllamaProvider(cfg)
	case "openai", "openai-compatible":
		return newOpenAIProvider(cfg)
	case "none":
		return nil, fmt.Errorf("embedding provider is \"none\" (keyword-only mode)")
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q (supported: ollama, openai, openai-compatible, none)", cfg.Provider)
	}
}

// validateEmbedding rejects vectors of the wrong dimensionality and the
// all-zero vector some backends return on failure. expectedDims of 0
// skips the dimension check.
func validateEmbedding(vec []float32, expectedDims int) error {
	if expectedDims > 0 && len(vec) != expectedDims {
		return fmt.Errorf("embedding dimension mismatch: expected %d, got %d", expectedDims, len(vec))
	}
	for _, v := range vec {
		if math.Float32bits(v) != 0 {
			return nil
		}
	}
	return fmt.Errorf("embedding is all zeros")
}
