package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"compliance-rag/internal/apperr"
)

// ModelCatalog lists the models a server exposes via GET /v1/models.
type ModelCatalog struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewModelCatalog creates a catalog client for baseURL.
func NewModelCatalog(baseURL, apiKey string, timeout time.Duration) *ModelCatalog {
	return &ModelCatalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

// ModelInfo is one entry of the model list.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ModelsResponse represents the response from the /v1/models endpoint.
type ModelsResponse struct {
	Data []ModelInfo `json:"data"`
}

// List returns the ids of all served models.
func (mc *ModelCatalog) List(ctx context.Context) ([]string, error) {
	var modelsResp ModelsResponse
	if err := doJSON(ctx, mc.client, http.MethodGet, mc.baseURL+"/v1/models", mc.apiKey, nil, &modelsResp); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	ids := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Verify returns a ConfigurationError when the server is unreachable or
// does not serve model. Ollama lists tagged names, so "llama3.1" also
// matches "llama3.1:latest".
func (mc *ModelCatalog) Verify(ctx context.Context, model string) error {
	ids, err := mc.List(ctx)
	if err != nil {
		return &apperr.ConfigurationError{Component: "llm", Err: err}
	}
	for _, id := range ids {
		if id == model || strings.TrimSuffix(id, ":latest") == model {
			return nil
		}
	}
	return &apperr.ConfigurationError{
		Component: "llm",
		Err:       fmt.Errorf("model %q is not available (served: %s)", model, strings.Join(ids, ", ")),
	}
}
