// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the search service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string // optional — empty disables the event mirror

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ChatModel      string
	EmbeddingModel string

	ResultsLimit   int // accepted-results quota per search
	OuterBatchSize int // candidates persisted per validation round
	LLMBatchSize   int // candidates per classification call
	LLMConcurrency int // concurrent classification calls per round

	JanitorIntervalMinutes int
	StaleSearchMinutes     int
	SearchRetentionDays    int // 0 = keep history forever
}

// Load reads environment variables and returns a validated Config.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	// Best-effort: absence of a .env file is not an error.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfg := &Config{
		Port:           port,
		DatabaseURL:    dbURL,
		RedisURL:       os.Getenv("REDIS_URL"),
		OpenAIAPIKey:   apiKey,
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		ChatModel:      os.Getenv("OPENAI_CHAT_MODEL"),
		EmbeddingModel: os.Getenv("OPENAI_EMBEDDING_MODEL"),
	}

	var err error
	if cfg.ResultsLimit, err = intEnv("SEARCH_RESULTS_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.OuterBatchSize, err = intEnv("SEARCH_BATCH_SIZE", 20); err != nil {
		return nil, err
	}
	if cfg.LLMBatchSize, err = intEnv("SEARCH_LLM_BATCH_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.LLMConcurrency, err = intEnv("SEARCH_LLM_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.JanitorIntervalMinutes, err = intEnv("JANITOR_INTERVAL_MINUTES", 10); err != nil {
		return nil, err
	}
	if cfg.StaleSearchMinutes, err = intEnv("STALE_SEARCH_MINUTES", 30); err != nil {
		return nil, err
	}

	// Retention may legitimately be zero (keep forever).
	if s := os.Getenv("SEARCH_RETENTION_DAYS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("SEARCH_RETENTION_DAYS must be a non-negative integer, got %q", s)
		}
		cfg.SearchRetentionDays = v
	}

	return cfg, nil
}

// intEnv reads a positive integer from the environment, falling back to
// def when unset.
func intEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}
