package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"OLLAMA_BASE_URL", "OPENAI_API_KEY", "DATABASE_URL", "REDIS_URL", "WEBSITE_URL", "PORT"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/sacco"
  vector_dim: 384
  batch_size: 50

cache:
  redis_url: "redis://localhost:6379/0"
  ttl: 12h

processor:
  chunk_size: 500
  chunk_overlap: 100
  remove_stopwords: true

retrieval:
  limit: 10
  min_similarity: 0.3

website:
  url: "https://sacco.example.com/"
  refresh_interval: 6h
  readability: true

timeouts:
  llm: 45s
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "http://localhost:11434", config.Embedding.BaseURL)
	assert.Equal(t, "nomic-embed-text:latest", config.Embedding.Model)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, 384, config.Database.VectorDim)
	assert.Equal(t, 12*time.Hour, config.Cache.TTL)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.True(t, config.Processor.RemoveStopwords)
	assert.Equal(t, 10, config.Retrieval.Limit)
	assert.Equal(t, 0.3, config.Retrieval.MinSimilarity)
	assert.Equal(t, 6*time.Hour, config.Website.RefreshInterval)
	assert.True(t, config.Website.Readability)
	assert.Equal(t, 45*time.Second, config.Timeouts.LLM)
	assert.Equal(t, 15*time.Second, config.Timeouts.Context)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, 800, config.LLM.MaxTokens)
	assert.Equal(t, 500, config.LLM.SummaryMaxTokens)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, "data/saccoassist.db", config.Database.URL)
	assert.Equal(t, 15, config.Retrieval.Limit)
	assert.Equal(t, 5, config.Assembler.FallbackDocuments)
	assert.Equal(t, 12000, config.Assembler.MaxChars)
	assert.Equal(t, "https://www.soyosoyosacco.com/", config.Website.URL)
	assert.Equal(t, int64(10<<20), config.Server.MaxUploadBytes)
	assert.Equal(t, []string{"*"}, config.Server.AllowOrigins)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"valid config", func(*Config) {}, nil},
		{
			name: "invalid llm",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
			},
			fields: []string{"llm.base_url", "llm.max_tokens", "llm.temperature"},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
			},
			fields: []string{"llm.api_key"},
		},
		{
			name: "postgres without url",
			mutate: func(c *Config) {
				c.Database.Driver = "postgres"
				c.Database.URL = ""
				c.Database.VectorDim = -1
			},
			fields: []string{"database.url", "database.vector_dim"},
		},
		{
			name: "bad redis and website",
			mutate: func(c *Config) {
				c.Cache.RedisURL = "http://localhost:6379"
				c.Website.URL = "not a url"
				c.Server.Port = 70000
			},
			fields: []string{"cache.redis_url", "website.url", "server.port"},
		},
		{
			name: "disabled website is not checked",
			mutate: func(c *Config) {
				c.Website.Disabled = true
				c.Website.URL = ""
			},
		},
		{
			name: "chunk overlap",
			mutate: func(c *Config) {
				c.Processor.ChunkOverlap = c.Processor.ChunkSize
				c.Retrieval.MinSimilarity = 2
			},
			fields: []string{"processor.chunk_overlap", "retrieval.min_similarity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			var got []string
			for _, e := range c.Validate() {
				got = append(got, e.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("REDIS_URL", "redis://env-redis:6379")
	t.Setenv("WEBSITE_URL", "https://env.example.com/")
	t.Setenv("PORT", "9090")

	config := &Config{}
	require.NoError(t, mergeWithEnv(config))
	applyDefaults(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, "redis://env-redis:6379", config.Cache.RedisURL)
	assert.Equal(t, "https://env.example.com/", config.Website.URL)
	assert.Equal(t, 9090, config.Server.Port)
}

func TestOpenAIKeySelectsProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	config := &Config{}
	require.NoError(t, mergeWithEnv(config))
	applyDefaults(config)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "gpt-4o", config.LLM.Model)
	assert.Equal(t, "openai", config.Embedding.Provider)
	assert.Equal(t, "sk-test", config.Embedding.APIKey)
	assert.Empty(t, config.Validate())
}

func TestInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")

	assert.Error(t, mergeWithEnv(&Config{}))
}
