package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"compliance-rag/internal/apperr"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:11434/", "test-key", "", 0)
	if client.BaseURL != "http://localhost:11434" {
		t.Errorf("NewClient() BaseURL = %v, want trailing slash trimmed", client.BaseURL)
	}
	if client.Model != DefaultModel {
		t.Errorf("NewClient() Model = %v, want %v", client.Model, DefaultModel)
	}
	if client.client.Timeout != DefaultTimeout {
		t.Errorf("NewClient() timeout = %v, want %v", client.client.Timeout, DefaultTimeout)
	}
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name       string
		serverResp func(w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantStatus int
		wantErr    bool
	}{
		{
			name: "successful completion",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer test-key" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}

				var req ChatRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if req.Model != "llama3.1:8b" || req.Stream {
					t.Errorf("request model/stream = %s/%v", req.Model, req.Stream)
				}
				if req.Temperature != DefaultTemperature || req.MaxTokens != DefaultMaxTokens {
					t.Errorf("sampling = %v/%d, want %v/%d", req.Temperature, req.MaxTokens, DefaultTemperature, DefaultMaxTokens)
				}
				if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "What is PPE?" {
					t.Errorf("messages = %+v", req.Messages)
				}

				_ = json.NewEncoder(w).Encode(ChatResponse{
					Choices: []ChatChoice{{Message: ChatMessage{Role: "assistant", Content: "Personal protective equipment [Source 1]"}}},
				})
			},
			wantReply: "Personal protective equipment [Source 1]",
		},
		{
			name: "no choices returned",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ChatResponse{})
			},
			wantErr: true,
		},
		{
			name: "server error",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("model not loaded"))
			},
			wantErr:    true,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "malformed body",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "llama3.1:8b", time.Second)
			reply, err := client.Generate(context.Background(), "What is PPE?", DefaultGenerateParams())

			if tt.wantErr {
				if err == nil {
					t.Fatal("Generate() expected error, got nil")
				}
				if tt.wantStatus != 0 {
					var statusErr *StatusError
					if !errors.As(err, &statusErr) || statusErr.StatusCode != tt.wantStatus {
						t.Errorf("Generate() error = %v, want status %d", err, tt.wantStatus)
					}
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("Generate() reply = %q, want %q", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_Generate_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, "", "llama3.1:8b", time.Second)
	_, err := client.Generate(ctx, "q", DefaultGenerateParams())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestModelCatalog_Verify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ModelsResponse{Data: []ModelInfo{
			{ID: "llama3.1:8b"},
			{ID: "all-minilm:latest"},
		}})
	}))
	defer server.Close()

	catalog := NewModelCatalog(server.URL, "", time.Second)

	tests := []struct {
		model   string
		wantErr bool
	}{
		{"llama3.1:8b", false},
		{"all-minilm", false},
		{"mistral:7b", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			err := catalog.Verify(context.Background(), tt.model)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify(%q) error = %v, wantErr %v", tt.model, err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *apperr.ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("Verify() error type = %T, want ConfigurationError", err)
				}
			}
		})
	}
}

func TestModelCatalog_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	catalog := NewModelCatalog(server.URL, "", time.Second)
	var cfgErr *apperr.ConfigurationError
	if err := catalog.Verify(context.Background(), "llama3.1:8b"); !errors.As(err, &cfgErr) {
		t.Errorf("Verify() error = %v, want ConfigurationError", err)
	}
}
