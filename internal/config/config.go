package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Vector index backends.
const (
	BackendQdrant   = "qdrant"
	BackendPgVector = "pgvector"
	BackendMemory   = "memory"
)

// Governance store backends.
const (
	GovernanceJSON   = "json"
	GovernanceSQLite = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel  string
	LogFormat string
	APIPort   string

	LLMBaseURL     string
	LLMModelName   string
	LLMAPIKey      string
	LLMVerifyModel bool

	EmbeddingBaseURL       string
	EmbeddingModelName     string
	VectorSize             int
	EmbedRequestsPerSecond float64

	VectorBackend    string
	QdrantURL        string
	QdrantCollection string
	PostgresDSN      string

	GovernanceBackend    string
	DBPath               string
	DataDir              string
	AuditLogPath         string
	DocumentRegistryPath string
	UsersPath            string
	CorpusPath           string

	ChunkSize    int
	NResults     int
	QueryTimeout time.Duration
}

// GovernanceDir is where registries and exported reports live.
func (c *Config) GovernanceDir() string {
	return filepath.Join(c.DataDir, "governance")
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent, it is loaded first;
// environment variables already set take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv()

	dataDir := getEnv("DATA_DIR", "./data")

	cfg := &Config{
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		APIPort:   getEnv("API_PORT", "9000"),

		LLMBaseURL:   getEnv("LLM_BASE_URL", "http://localhost:11434"),
		LLMModelName: getEnv("LLM_MODEL", "llama3.1:8b"),
		LLMAPIKey:    getEnv("LLM_API_KEY", "dummy-key"),

		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", "all-MiniLM-L6-v2"),

		VectorBackend:    strings.ToLower(getEnv("VECTOR_BACKEND", BackendQdrant)),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "medical_compliance"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),

		GovernanceBackend:    strings.ToLower(getEnv("GOVERNANCE_BACKEND", GovernanceJSON)),
		DataDir:              dataDir,
		DBPath:               getEnv("DB_PATH", filepath.Join(dataDir, "governance", "governance.db")),
		AuditLogPath:         getEnv("AUDIT_LOG_PATH", filepath.Join(dataDir, "audit", "query_logs.jsonl")),
		DocumentRegistryPath: getEnv("DOCUMENT_REGISTRY_PATH", filepath.Join(dataDir, "governance", "document_registry.json")),
		UsersPath:            getEnv("USERS_PATH", filepath.Join(dataDir, "governance", "users.json")),
		CorpusPath:           getEnv("CORPUS_PATH", filepath.Join(dataDir, "processed")),
	}

	var err error
	if cfg.LLMVerifyModel, err = strconv.ParseBool(getEnv("LLM_VERIFY_MODEL", "true")); err != nil {
		return nil, fmt.Errorf("LLM_VERIFY_MODEL must be a boolean: %w", err)
	}

	// VECTOR_SIZE must match the output size of the embeddings model. If it
	// changes, the collection must be rebuilt.
	vectorSizeStr := getEnv("VECTOR_SIZE", "")
	if vectorSizeStr == "" {
		return nil, fmt.Errorf("VECTOR_SIZE is required")
	}
	if cfg.VectorSize, err = positiveInt("VECTOR_SIZE", vectorSizeStr); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = positiveInt("CHUNK_SIZE", getEnv("CHUNK_SIZE", "500")); err != nil {
		return nil, err
	}
	if cfg.NResults, err = positiveInt("N_RESULTS", getEnv("N_RESULTS", "5")); err != nil {
		return nil, err
	}

	if cfg.QueryTimeout, err = time.ParseDuration(getEnv("QUERY_TIMEOUT", "2m")); err != nil {
		return nil, fmt.Errorf("QUERY_TIMEOUT must be a duration: %w", err)
	}
	if cfg.QueryTimeout < 0 {
		return nil, fmt.Errorf("QUERY_TIMEOUT must not be negative")
	}

	cfg.EmbedRequestsPerSecond, err = strconv.ParseFloat(getEnv("EMBED_REQUESTS_PER_SECOND", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("EMBED_REQUESTS_PER_SECOND must be a number: %w", err)
	}
	if cfg.EmbedRequestsPerSecond < 0 {
		return nil, fmt.Errorf("EMBED_REQUESTS_PER_SECOND must not be negative")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dirs := []string{
		cfg.DataDir,
		cfg.GovernanceDir(),
		filepath.Dir(cfg.AuditLogPath),
		filepath.Dir(cfg.DocumentRegistryPath),
		filepath.Dir(cfg.UsersPath),
	}
	if cfg.GovernanceBackend == GovernanceSQLite {
		dirs = append(dirs, filepath.Dir(cfg.DBPath))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// NewLogger returns a structured logger writing to w in the configured
// format and level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *Config) validate() error {
	if !slices.Contains([]string{BackendQdrant, BackendPgVector, BackendMemory}, c.VectorBackend) {
		return fmt.Errorf("VECTOR_BACKEND must be one of qdrant, pgvector, memory; got %q", c.VectorBackend)
	}
	if c.VectorBackend == BackendPgVector && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when VECTOR_BACKEND=pgvector")
	}
	if !slices.Contains([]string{GovernanceJSON, GovernanceSQLite}, c.GovernanceBackend) {
		return fmt.Errorf("GOVERNANCE_BACKEND must be json or sqlite; got %q", c.GovernanceBackend)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		return fmt.Errorf("LOG_FORMAT must be text or json; got %q", c.LogFormat)
	}
	return nil
}

// loadDotEnv loads .env from the working directory, then from the nearest
// parent that has one. Missing files are ignored.
func loadDotEnv() {
	_ = godotenv.Load()

	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for range 5 {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return n, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
