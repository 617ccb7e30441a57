package assembler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

const truncatedMarker = "\n... [Context truncated]"

// Searcher is the similarity retriever. It must not fail; an empty result
// means no grounding was found.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []models.RetrievedChunk
}

// WebsiteSource supplies the bounded website snapshot text.
type WebsiteSource interface {
	Snapshot(maxLength int) string
}

type Config struct {
	RetrievalLimit       int           // default 15
	FallbackDocuments    int           // default 5
	FallbackExcerptChars int           // default 500
	WebsiteMaxChars      int           // default 5000
	MaxChars             int           // default 12000, negative disables the ceiling
	Timeout              time.Duration // 0 disables
}

func (c Config) withDefaults() Config {
	if c.RetrievalLimit <= 0 {
		c.RetrievalLimit = 15
	}
	if c.FallbackDocuments <= 0 {
		c.FallbackDocuments = 5
	}
	if c.FallbackExcerptChars <= 0 {
		c.FallbackExcerptChars = 500
	}
	if c.WebsiteMaxChars <= 0 {
		c.WebsiteMaxChars = 5000
	}
	if c.MaxChars == 0 {
		c.MaxChars = 12000
	}
	return c
}

// Assembler builds the context string injected into chat prompts.
type Assembler struct {
	config    Config
	searcher  Searcher
	documents types.DocumentStore
	website   WebsiteSource
	logger    *zap.Logger
}

// New returns an Assembler. documents and website may be nil.
func New(searcher Searcher, documents types.DocumentStore, website WebsiteSource, config Config, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		config:    config.withDefaults(),
		searcher:  searcher,
		documents: documents,
		website:   website,
		logger:    logger,
	}
}

// AssembleContext returns "" when includeContext is false or when assembly
// does not finish within the configured timeout.
func (a *Assembler) AssembleContext(ctx context.Context, query string, includeContext bool) string {
	if !includeContext {
		return ""
	}

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	done := make(chan string, 1)
	go func() { done <- a.assemble(ctx, query) }()

	select {
	case out := <-done:
		if ctx.Err() != nil {
			a.logger.Warn("context assembly timed out, proceeding without context")
			return ""
		}
		return out
	case <-ctx.Done():
		a.logger.Warn("context assembly timed out, proceeding without context", zap.Error(ctx.Err()))
		return ""
	}
}

func (a *Assembler) assemble(ctx context.Context, query string) string {
	var sections []string

	if docs := a.documentContext(ctx, query); docs != "" {
		sections = append(sections, docs)
	}
	if a.website != nil {
		if site := a.website.Snapshot(a.config.WebsiteMaxChars); site != "" {
			sections = append(sections, site)
		}
	}

	return a.capped(strings.Join(sections, "\n\n"))
}

func (a *Assembler) documentContext(ctx context.Context, query string) string {
	if a.searcher != nil {
		hits := a.searcher.Search(ctx, query, a.config.RetrievalLimit)
		if len(hits) > 0 {
			segments := make([]string, 0, len(hits))
			for _, h := range hits {
				segments = append(segments, fmt.Sprintf("%s: %s", h.FileName, h.Text))
			}
			a.logger.Debug("assembled retrieval context", zap.Int("chunks", len(hits)))
			return strings.Join(segments, "\n\n")
		}
	}

	if a.documents == nil {
		return ""
	}
	docs, err := a.documents.RecentDocumentsWithText(ctx, a.config.FallbackDocuments)
	if err != nil {
		a.logger.Warn("failed to load fallback documents", zap.Error(err))
		return ""
	}

	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		text := strings.TrimSpace(d.Text())
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("=== %s ===\n%s", d.FileName, excerpt(text, a.config.FallbackExcerptChars)))
	}
	return strings.Join(blocks, "\n\n")
}

func (a *Assembler) capped(s string) string {
	if a.config.MaxChars < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= a.config.MaxChars {
		return s
	}
	return string(r[:a.config.MaxChars]) + truncatedMarker
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
