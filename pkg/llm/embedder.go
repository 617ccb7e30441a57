package llm

import (
	"context"
	"fmt"
	"time"
)

type EmbedderConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

type Embedder struct {
	Config  EmbedderConfig
	creator EmbeddingCreator
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}

	creator, err := newProvider(ProviderConfig{
		Provider: config.Provider,
		Model:    config.Model,
		BaseURL:  config.BaseURL,
		APIKey:   config.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return NewEmbedderFrom(creator, config), nil
}

// NewEmbedderFrom wraps an existing embedding client.
func NewEmbedderFrom(creator EmbeddingCreator, config EmbedderConfig) *Embedder {
	return &Embedder{Config: config, creator: creator}
}

// Embed returns the embedding of one text. An empty result is not an error
// here; callers treat a zero-length vector as unavailable.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Config.Timeout)
		defer cancel()
	}

	embeddings, err := e.creator.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	return FlattenEmbeddings(embeddings), nil
}

func FlattenEmbeddings(embeddings [][]float32) []float32 {
	var flattened []float32
	for _, emb := range embeddings {
		flattened = append(flattened, emb...)
	}
	return flattened
}
