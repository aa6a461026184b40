package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EmbeddingsClient calls an OpenAI-compatible /v1/embeddings endpoint.
type EmbeddingsClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExpectedSize int // every returned vector must have this many dimensions
	client       *http.Client
}

// NewEmbeddingsClient creates a new embeddings client.
// expectedSize is the configured vector size (VECTOR_SIZE).
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int, timeout time.Duration) *EmbeddingsClient {
	return &EmbeddingsClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		client:       newHTTPClient(timeout),
	}
}

// EmbeddingsRequest represents the request payload for embeddings API.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// Dimensions returns the configured vector size.
func (c *EmbeddingsClient) Dimensions() int {
	return c.ExpectedSize
}

// EmbedTexts returns one vector per input text, in input order.
func (c *EmbeddingsClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	var embeddingsResp EmbeddingsResponse
	payload := EmbeddingsRequest{Model: c.Model, Input: texts}
	if err := doJSON(ctx, c.client, http.MethodPost, c.BaseURL+"/v1/embeddings", c.APIKey, payload, &embeddingsResp); err != nil {
		return nil, err
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	result := make([][]float32, len(embeddingsResp.Data))
	for i, data := range embeddingsResp.Data {
		if len(data.Embedding) != c.ExpectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), c.ExpectedSize)
		}
		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[i] = vec
	}

	return result, nil
}
