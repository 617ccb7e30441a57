package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	add := func(field, message string) {
		errors = append(errors, ValidationError{Field: field, Message: message})
	}

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			add("llm.base_url", "Ollama base URL is required")
		} else if !isHTTPURL(c.LLM.BaseURL) {
			add("llm.base_url", "invalid Ollama base URL")
		}
	case "openai":
		if c.LLM.APIKey == "" {
			add("llm.api_key", "api_key is required for the openai provider")
		}
	default:
		add("llm.provider", fmt.Sprintf("unsupported provider %q", c.LLM.Provider))
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		add("llm.max_tokens", "max_tokens must be between 1 and 4096")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		add("llm.temperature", "temperature must be between 0 and 1")
	}

	if !c.Embedding.Disabled && c.Embedding.Provider != "ollama" && c.Embedding.Provider != "openai" {
		add("embedding.provider", fmt.Sprintf("unsupported provider %q", c.Embedding.Provider))
	}

	// Validate Database config
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			add("database.url", "database URL is required for postgres")
		} else if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			add("database.url", "invalid database URL")
		}
	case "sqlite", "memory":
	default:
		add("database.driver", fmt.Sprintf("unsupported driver %q", c.Database.Driver))
	}

	if c.Database.VectorDim < 1 {
		add("database.vector_dim", "vector_dim must be positive")
	}

	if c.Database.BatchSize < 1 {
		add("database.batch_size", "batch_size must be positive")
	}

	if c.Cache.RedisURL != "" {
		if u, err := url.Parse(c.Cache.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			add("cache.redis_url", "redis_url must be a redis:// or rediss:// URL")
		}
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		add("processor.chunk_size", "chunk_size must be positive")
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		add("processor.chunk_overlap", "chunk_overlap must be non-negative and less than chunk_size")
	}

	if c.Retrieval.Limit < 1 {
		add("retrieval.limit", "limit must be positive")
	}

	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		add("retrieval.min_similarity", "min_similarity must be between 0 and 1")
	}

	if !c.Website.Disabled {
		if !isHTTPURL(c.Website.URL) {
			add("website.url", "website url must be an absolute http(s) URL")
		}
		if c.Website.RateLimit <= 0 {
			add("website.rate_limit", "rate_limit must be positive")
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "port must be between 1 and 65535")
	}

	return errors
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
