package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/types"
	"github.com/xhad/saccoassist/pkg/assembler"
	"github.com/xhad/saccoassist/pkg/chat"
	"github.com/xhad/saccoassist/pkg/config"
	"github.com/xhad/saccoassist/pkg/extractor"
	"github.com/xhad/saccoassist/pkg/ingest"
	"github.com/xhad/saccoassist/pkg/llm"
	"github.com/xhad/saccoassist/pkg/processor"
	"github.com/xhad/saccoassist/pkg/retriever"
	"github.com/xhad/saccoassist/pkg/scraper"
	"github.com/xhad/saccoassist/pkg/store"
	"github.com/xhad/saccoassist/pkg/summary"
)

// app holds the wired services shared by the subcommands.
type app struct {
	store     types.Store
	redis     *summary.RedisStore
	extractor *extractor.Extractor

	ingest    *ingest.Service
	summaries *summary.Cache
	website   *scraper.Cache // nil when website content is disabled
	chat      *chat.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	st, err := store.Open(ctx, store.Config{
		Driver:    cfg.Database.Driver,
		URL:       cfg.Database.URL,
		VectorDim: cfg.Database.VectorDim,
		BatchSize: cfg.Database.BatchSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	a.store = st

	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		BaseURL:           cfg.LLM.BaseURL,
		APIKey:            cfg.LLM.APIKey,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           cfg.Timeouts.LLM,
		SummaryMaxTokens:  cfg.LLM.SummaryMaxTokens,
		AnalysisMaxTokens: cfg.LLM.AnalysisMaxTokens,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	var embedder types.Embedder
	if !cfg.Embedding.Disabled {
		emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
			Provider: cfg.Embedding.Provider,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
			Timeout:  cfg.Timeouts.Embedding,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		embedder = emb
	}

	a.extractor, err = extractor.NewWithConfig(extractor.ExtractorConfig{
		MaxPDFPages:   cfg.Extractor.MaxPDFPages,
		LargePDFBytes: cfg.Extractor.LargePDFBytes,
		MinPDFText:    cfg.Extractor.MinPDFText,
		Workers:       cfg.Extractor.Workers,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:       cfg.Processor.ChunkSize,
		ChunkOverlap:    cfg.Processor.ChunkOverlap,
		MinChunkLength:  cfg.Processor.MinChunkLength,
		RemoveStopwords: cfg.Processor.RemoveStopwords,
		Lowercase:       cfg.Processor.Lowercase,
	})
	a.ingest = ingest.New(extractor.NewPipeline(a.extractor, engine, logger), st, proc, embedder, ingest.Config{}, logger)

	var summaryStore types.SummaryStore = st
	if cfg.Cache.RedisURL != "" {
		rs, err := summary.NewRedisStore(ctx, summary.RedisConfig{
			URL:       cfg.Cache.RedisURL,
			KeyPrefix: cfg.Cache.KeyPrefix,
			TTL:       cfg.Cache.TTL,
		})
		if err != nil {
			logger.Warn("redis unavailable, summaries use the database only", zap.Error(err))
		} else {
			a.redis = rs
			summaryStore = summary.NewTiered(rs, st, logger)
		}
	}
	a.summaries = summary.New(summaryStore, engine, summary.Config{Concurrency: cfg.Cache.Concurrency}, logger)

	var website assembler.WebsiteSource
	if !cfg.Website.Disabled {
		s, err := newScraper(cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.website = scraper.NewCache(s, logger)
		website = a.website
	}

	searcher := retriever.NewDefault(st, embedder, cfg.Retrieval.MinSimilarity, cfg.Retrieval.ExcerptChars, logger)
	asm := assembler.New(searcher, st, website, assembler.Config{
		RetrievalLimit:       cfg.Retrieval.Limit,
		FallbackDocuments:    cfg.Assembler.FallbackDocuments,
		FallbackExcerptChars: cfg.Assembler.FallbackExcerptChars,
		WebsiteMaxChars:      cfg.Assembler.WebsiteMaxChars,
		MaxChars:             cfg.Assembler.MaxChars,
		Timeout:              cfg.Timeouts.Context,
	}, logger)
	a.chat = chat.New(st, engine, asm, chat.Config{}, logger)

	return a, nil
}

func newScraper(cfg *config.Config, logger *zap.Logger) (*scraper.Scraper, error) {
	s, err := scraper.NewWithConfig(scraper.ScraperConfig{
		URL:         cfg.Website.URL,
		UserAgent:   cfg.Website.UserAgent,
		RateLimit:   cfg.Website.RateLimit,
		Timeout:     cfg.Timeouts.Website,
		Readability: cfg.Website.Readability,
		Interval:    cfg.Website.RefreshInterval,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}
	return s, nil
}

func (a *app) Close() {
	if a.extractor != nil {
		a.extractor.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}
