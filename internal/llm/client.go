package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"compliance-rag/internal/contextutil"
)

// Client talks to an OpenAI-compatible chat completions endpoint
// (Ollama, llama.cpp server, vLLM).
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	client  *http.Client
}

// NewClient creates a new LLM client. A non-positive timeout selects DefaultTimeout.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		client:  newHTTPClient(timeout),
	}
}

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents the request payload for chat completions.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// ChatChoice represents a single choice in the chat response.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse represents the response from the chat completions API.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ModelName returns the model answers are generated with.
func (c *Client) ModelName() string {
	return c.Model
}

// Generate sends prompt as a single user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string, params GenerateParams) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)

	payload := ChatRequest{
		Model:       c.Model,
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	start := time.Now()
	var chatResp ChatResponse
	if err := doJSON(ctx, c.client, http.MethodPost, c.BaseURL+"/v1/chat/completions", c.APIKey, payload, &chatResp); err != nil {
		return "", err
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}

	reply := chatResp.Choices[0].Message.Content
	logger.DebugContext(ctx, "completion received",
		"model", c.Model,
		"prompt_len", len(prompt),
		"reply_len", len(reply),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}
