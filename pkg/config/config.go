package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Processor ProcessorConfig `yaml:"processor"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Assembler AssemblerConfig `yaml:"assembler"`
	Website   WebsiteConfig   `yaml:"website"`
	Server    ServerConfig    `yaml:"server"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

type LLMConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKey            string  `yaml:"api_key"`
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	SummaryMaxTokens  int     `yaml:"summary_max_tokens"`
	AnalysisMaxTokens int     `yaml:"analysis_max_tokens"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Disabled bool   `yaml:"disabled"`
}

type DatabaseConfig struct {
	Driver    string `yaml:"driver"` // postgres, sqlite or memory
	URL       string `yaml:"url"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type CacheConfig struct {
	RedisURL    string        `yaml:"redis_url"`
	KeyPrefix   string        `yaml:"key_prefix"`
	TTL         time.Duration `yaml:"ttl"`
	Concurrency int           `yaml:"concurrency"`
}

type ExtractorConfig struct {
	MaxPDFPages   int   `yaml:"max_pdf_pages"`
	LargePDFBytes int64 `yaml:"large_pdf_bytes"`
	MinPDFText    int   `yaml:"min_pdf_text"`
	Workers       int   `yaml:"workers"`
}

type ProcessorConfig struct {
	ChunkSize       int  `yaml:"chunk_size"`
	ChunkOverlap    int  `yaml:"chunk_overlap"`
	MinChunkLength  int  `yaml:"min_chunk_length"`
	RemoveStopwords bool `yaml:"remove_stopwords"`
	Lowercase       bool `yaml:"lowercase"`
}

type RetrievalConfig struct {
	Limit         int     `yaml:"limit"`
	MinSimilarity float64 `yaml:"min_similarity"`
	ExcerptChars  int     `yaml:"excerpt_chars"`
}

type AssemblerConfig struct {
	FallbackDocuments    int `yaml:"fallback_documents"`
	FallbackExcerptChars int `yaml:"fallback_excerpt_chars"`
	WebsiteMaxChars      int `yaml:"website_max_chars"`
	MaxChars             int `yaml:"max_chars"`
}

type WebsiteConfig struct {
	URL             string        `yaml:"url"`
	UserAgent       string        `yaml:"user_agent"`
	RateLimit       float64       `yaml:"rate_limit"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	Readability     bool          `yaml:"readability"`
	Disabled        bool          `yaml:"disabled"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
	AllowOrigins   []string `yaml:"allow_origins"`
}

type TimeoutConfig struct {
	LLM       time.Duration `yaml:"llm"`
	Embedding time.Duration `yaml:"embedding"`
	Website   time.Duration `yaml:"website"`
	Context   time.Duration `yaml:"context"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/saccoassist/config.yaml"),
			"/etc/saccoassist/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Environment wins over the file; defaults fill whatever is left.
	if err := mergeWithEnv(&config); err != nil {
		return nil, err
	}
	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		if config.LLM.Provider == "openai" {
			config.LLM.Model = "gpt-4o"
		} else {
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 800
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.SummaryMaxTokens == 0 {
		config.LLM.SummaryMaxTokens = 500
	}
	if config.LLM.AnalysisMaxTokens == 0 {
		config.LLM.AnalysisMaxTokens = 150
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = config.LLM.Provider
	}
	if config.Embedding.Model == "" {
		if config.Embedding.Provider == "openai" {
			config.Embedding.Model = "text-embedding-3-small"
		} else {
			config.Embedding.Model = "nomic-embed-text:latest"
		}
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == config.LLM.Provider {
		config.Embedding.BaseURL = config.LLM.BaseURL
	}
	if config.Embedding.APIKey == "" {
		config.Embedding.APIKey = config.LLM.APIKey
	}

	if config.Database.Driver == "" {
		if config.Database.URL == "" {
			config.Database.Driver = "sqlite"
		} else {
			config.Database.Driver = "postgres"
		}
	}
	if config.Database.Driver == "sqlite" && config.Database.URL == "" {
		config.Database.URL = "data/saccoassist.db"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Cache.KeyPrefix == "" {
		config.Cache.KeyPrefix = "summary:"
	}
	if config.Cache.Concurrency == 0 {
		config.Cache.Concurrency = 4
	}

	if config.Extractor.MaxPDFPages == 0 {
		config.Extractor.MaxPDFPages = 10
	}
	if config.Extractor.LargePDFBytes == 0 {
		config.Extractor.LargePDFBytes = 4 << 20
	}
	if config.Extractor.MinPDFText == 0 {
		config.Extractor.MinPDFText = 10
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}
	if config.Processor.MinChunkLength == 0 {
		config.Processor.MinChunkLength = 100
	}

	if config.Retrieval.Limit == 0 {
		config.Retrieval.Limit = 15
	}
	if config.Retrieval.ExcerptChars == 0 {
		config.Retrieval.ExcerptChars = 1000
	}

	if config.Assembler.FallbackDocuments == 0 {
		config.Assembler.FallbackDocuments = 5
	}
	if config.Assembler.FallbackExcerptChars == 0 {
		config.Assembler.FallbackExcerptChars = 500
	}
	if config.Assembler.WebsiteMaxChars == 0 {
		config.Assembler.WebsiteMaxChars = 5000
	}
	if config.Assembler.MaxChars == 0 {
		config.Assembler.MaxChars = 12000
	}

	if config.Website.URL == "" {
		config.Website.URL = "https://www.soyosoyosacco.com/"
	}
	if config.Website.RateLimit == 0 {
		config.Website.RateLimit = 1.0
	}
	if config.Website.RefreshInterval == 0 {
		config.Website.RefreshInterval = 24 * time.Hour
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.MaxUploadBytes == 0 {
		config.Server.MaxUploadBytes = 10 << 20
	}
	if len(config.Server.AllowOrigins) == 0 {
		config.Server.AllowOrigins = []string{"*"}
	}

	if config.Timeouts.LLM == 0 {
		config.Timeouts.LLM = 60 * time.Second
	}
	if config.Timeouts.Embedding == 0 {
		config.Timeouts.Embedding = 30 * time.Second
	}
	if config.Timeouts.Website == 0 {
		config.Timeouts.Website = 30 * time.Second
	}
	if config.Timeouts.Context == 0 {
		config.Timeouts.Context = 15 * time.Second
	}
}

func mergeWithEnv(config *Config) error {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
		if config.LLM.Provider == "" {
			config.LLM.Provider = "openai"
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		config.Cache.RedisURL = redisURL
	}
	if websiteURL := os.Getenv("WEBSITE_URL"); websiteURL != "" {
		config.Website.URL = websiteURL
	}
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}
	return nil
}
