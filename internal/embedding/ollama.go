package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	ollamaMaxRetries = 3
	ollamaRetryBase  = 2 * time.Second // delays: 0s, 2s, 4s

	// ollamaTruncateAt: a 500 on a prompt past this length is treated
	// as context overflow and retried with half the text.
	ollamaTruncateAt = 3000
)

// OllamaProvider embeds text through a local Ollama instance.
type OllamaProvider struct {
	httpClient *http.Client
	logger     *zap.Logger
	baseURL    string
	model      string
	dims       int
	retryBase  time.Duration
}

// newOllamaProvider creates an Ollama embedding provider. Ollama speaks
// plain HTTP with no auth, so the base URL must stay on localhost.
func newOllamaProvider(cfg ProviderConfig) (*OllamaProvider, error) {
	model := cfg.Model
	if model == "" {
		model = "nomic-embed-text"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if err := validateLocalhostOnly(baseURL); err != nil {
		return nil, err
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = ollamaDefaultDims(model)
	}

	return &OllamaProvider{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     cfg.logger(),
		baseURL:    baseURL,
		model:      model,
		dims:       dims,
		retryBase:  ollamaRetryBase,
	}, nil
}

func (p *OllamaProvider) Name() string    { return "ollama" }
func (p *OllamaProvider) Model() string   { return p.model }
func (p *OllamaProvider) Dimensions() int { return p.dims }

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// httpError separates client errors (4xx, no retry) from server and
// network errors (retry).
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("ollama returned %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) isRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// GetEmbedding embeds text. For nomic-style models purpose selects the
// search_document/search_query prompt prefix. Server and network errors
// retry with linear backoff; a 500 on a long prompt halves the text
// instead.
func (p *OllamaProvider) GetEmbedding(text string, purpose string) ([]float32, error) {
	prefix := "search_document"
	if purpose == "query" {
		prefix = "search_query"
	}
	prompt := prefix + ": " + text

	var lastErr error
	for attempt := 0; attempt < ollamaMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * p.retryBase
			p.logger.Warn("ollama request failed, retrying",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", ollamaMaxRetries))
			time.Sleep(delay)
		}

		vec, err := p.doEmbedRequest(prompt)
		if err == nil {
			if err := validateEmbedding(vec, p.dims); err != nil {
				return nil, err
			}
			return vec, nil
		}

		if he, ok := err.(*httpError); ok {
			if he.StatusCode == http.StatusInternalServerError && len(text) > ollamaTruncateAt {
				return p.GetEmbedding(text[:len(text)/2], purpose)
			}
			if !he.isRetryable() {
				return nil, err
			}
		}
		lastErr = err
	}
	return nil, fmt.Errorf("ollama request failed after %d attempts: %w", ollamaMaxRetries, lastErr)
}

func (p *OllamaProvider) doEmbedRequest(prompt string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{
		Model:  p.model,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := p.httpClient.Post(p.baseURL+"/api/embeddings", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, &httpError{StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &httpError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return result.Embedding, nil
}

func (p *OllamaProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}

func (p *OllamaProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}

func validateLocalhostOnly(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid ollama URL: %w", err)
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" && host != "::1" {
		return fmt.Errorf("ollama URL must point to localhost, got %q", host)
	}
	return nil
}

func ollamaDefaultDims(model string) int {
	switch model {
	case "mxbai-embed-large", "snowflake-arctic-embed":
		return 1024
	case "all-minilm":
		return 384
	default: // nomic-embed-text
		return 768
	}
}
