package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the engine.
type Config struct {
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingsEnabled  bool
	EmbeddingTimeout   time.Duration
	EmbeddingCacheSize int

	LLMBaseURL   string
	LLMModelName string
	LLMAPIKey    string

	QdrantURL           string
	VectorSize          int
	ChunksCollection    string
	SummariesCollection string
	ResearchCollection  string
	UploadsCollection   string

	MaxChunkSize     int
	SummaryBatchSize int

	DBPath string

	LogLevel  slog.Level
	LogFormat string
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates the rest.
// If a .env file exists in the current directory or any parent up to the
// project root, it is loaded first; variables already set in the
// environment take precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load() // current directory, if present

	// Walk up a few levels looking for a .env next to the project root.
	if wd, err := os.Getwd(); err == nil {
		dir := wd
		for i := 0; i < 5; i++ {
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	cfg := &Config{
		EmbeddingBaseURL:    getEnv("EMBEDDING_BASE_URL", "http://localhost:8081"),
		EmbeddingModelName:  getEnv("EMBEDDING_MODEL_NAME", "text-embedding-004"),
		EmbeddingAPIKey:     getEnv("EMBEDDING_API_KEY", "dummy-key"),
		LLMBaseURL:          getEnv("LLM_BASE_URL", "http://localhost:8080"),
		LLMModelName:        getEnv("LLM_MODEL", "Llama-3.1-8B-Instruct"),
		LLMAPIKey:           getEnv("LLM_API_KEY", "dummy-key"),
		QdrantURL:           getEnv("QDRANT_URL", "http://localhost:6333"),
		ChunksCollection:    getEnv("CHUNKS_COLLECTION", "document_chunks"),
		SummariesCollection: getEnv("SUMMARIES_COLLECTION", "document_summaries"),
		ResearchCollection:  getEnv("RESEARCH_COLLECTION", "research_sources"),
		UploadsCollection:   getEnv("UPLOADS_COLLECTION", "file_uploads"),
		DBPath:              getEnv("DB_PATH", "./data/draftmind.db"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.VectorSize, err = getEnvInt("VECTOR_SIZE", 768); err != nil {
		return nil, err
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("VECTOR_SIZE must be greater than 0")
	}
	if cfg.MaxChunkSize, err = getEnvInt("MAX_CHUNK_SIZE", 2000); err != nil {
		return nil, err
	}
	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("MAX_CHUNK_SIZE must be greater than 0")
	}
	if cfg.SummaryBatchSize, err = getEnvInt("SUMMARY_BATCH_SIZE", 8); err != nil {
		return nil, err
	}
	if cfg.SummaryBatchSize <= 0 {
		return nil, fmt.Errorf("SUMMARY_BATCH_SIZE must be greater than 0")
	}
	if cfg.EmbeddingCacheSize, err = getEnvInt("EMBEDDING_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}

	cfg.EmbeddingsEnabled = getEnv("EMBEDDINGS_ENABLED", "true") != "false"

	timeoutSecs, err := getEnvInt("EMBEDDING_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	if timeoutSecs <= 0 {
		return nil, fmt.Errorf("EMBEDDING_TIMEOUT_SECONDS must be greater than 0")
	}
	cfg.EmbeddingTimeout = time.Duration(timeoutSecs) * time.Second

	cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	// Create the data directory up front so sqlite can open its file.
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", level)
	}
}
