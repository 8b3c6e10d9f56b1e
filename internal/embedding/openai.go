package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openaiMaxChars caps the request payload; most OpenAI embedding models
// take 8191 tokens.
const openaiMaxChars = 30000

// OpenAIProvider embeds text through an OpenAI-shaped /v1/embeddings
// endpoint. It backs both the hosted API and openai-compatible local
// servers.
type OpenAIProvider struct {
	httpClient *http.Client
	name       string
	baseURL    string
	model      string
	apiKey     string
	dims       int
}

func newOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}

	model := cfg.Model
	baseURL := cfg.BaseURL
	dims := cfg.Dimensions

	switch name {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an API key (set the environment variable named by embedding.api_key_env, default OPENAI_API_KEY)")
		}
		if model == "" {
			model = "text-embedding-3-small"
		}
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		if dims == 0 {
			dims = openaiDefaultDims(model)
		}
	case "openai-compatible":
		// No hosted defaults apply: the server decides the vector size
		// (dims 0 skips validation) and the key is optional.
		if model == "" {
			return nil, fmt.Errorf("openai-compatible embedding provider requires embedding.model")
		}
		if baseURL == "" {
			return nil, fmt.Errorf("openai-compatible embedding provider requires embedding.base_url")
		}
	}

	return &OpenAIProvider{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		name:       name,
		baseURL:    baseURL,
		model:      model,
		apiKey:     cfg.APIKey,
		dims:       dims,
	}, nil
}

func (p *OpenAIProvider) Name() string    { return p.name }
func (p *OpenAIProvider) Model() string   { return p.model }
func (p *OpenAIProvider) Dimensions() int { return p.dims }

type openaiEmbeddingRequest struct {
	Input      string `json:"input"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions,omitempty"`
}

type openaiEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GetEmbedding embeds text. The purpose argument is ignored: these
// models take no document/query prefix.
func (p *OpenAIProvider) GetEmbedding(text string, _ string) ([]float32, error) {
	if len(text) > openaiMaxChars {
		text = text[:openaiMaxChars]
	}

	reqBody := openaiEmbeddingRequest{
		Input: text,
		Model: p.model,
	}
	// Only the text-embedding-3-* family accepts a dimensions override.
	if p.dims > 0 && isVariableDimModel(p.model) {
		reqBody.Dimensions = p.dims
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s returned %d: %s", p.name, resp.StatusCode, string(respBody))
	}

	var result openaiEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%s error: %s", p.name, result.Error.Message)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	vec := result.Data[0].Embedding
	if err := validateEmbedding(vec, p.dims); err != nil {
		return nil, err
	}
	return vec, nil
}

func (p *OpenAIProvider) GetDocumentEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "document")
}

func (p *OpenAIProvider) GetQueryEmbedding(text string) ([]float32, error) {
	return p.GetEmbedding(text, "query")
}

func openaiDefaultDims(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default: // text-embedding-3-small, text-embedding-ada-002
		return 1536
	}
}

func isVariableDimModel(model string) bool {
	return model == "text-embedding-3-small" || model == "text-embedding-3-large"
}
