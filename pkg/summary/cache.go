package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
	"github.com/xhad/saccoassist/pkg/hasher"
)

// Summarizer is the external summarization collaborator. The llm
// ChatEngine satisfies it.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

type Config struct {
	// Concurrency bounds BuildContext fan-out. Zero means 4.
	Concurrency int
}

// File is one named document handed to BuildContext.
type File struct {
	Name    string
	Content string
}

// Cache is a read-through summary cache keyed by the SHA-256 digest of the
// document content. Concurrent misses on one digest share a single
// summarizer call.
type Cache struct {
	config     Config
	store      types.SummaryStore
	summarizer Summarizer
	logger     *zap.Logger
	flight     singleflight.Group
}

func New(store types.SummaryStore, summarizer Summarizer, config Config, logger *zap.Logger) *Cache {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		config:     config,
		store:      store,
		summarizer: summarizer,
		logger:     logger,
	}
}

func formatSummary(fileName, summary string) string {
	return fmt.Sprintf("=== DOCUMENT: %s ===\n%s", fileName, summary)
}

// GetOrCreateSummary returns the cached summary of content, creating it on
// a miss. Summarizer failures are returned; store failures are logged.
func (c *Cache) GetOrCreateSummary(ctx context.Context, content, fileName string) (string, error) {
	digest := hasher.Strong(content)

	ch := c.flight.DoChan(digest, func() (interface{}, error) {
		// The shared call outlives any single waiter's cancellation.
		return c.load(context.WithoutCancel(ctx), digest, content, fileName)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return formatSummary(fileName, res.Val.(string)), nil
	}
}

func (c *Cache) load(ctx context.Context, digest, content, fileName string) (string, error) {
	entry, err := c.store.GetSummary(ctx, digest)
	switch {
	case err == nil:
		c.logger.Debug("summary cache hit", zap.String("hash", digest), zap.String("file", fileName))
		return entry.Summary, nil
	case errors.Is(err, types.ErrNotFound):
	default:
		c.logger.Warn("summary lookup failed, treating as miss", zap.String("hash", digest), zap.Error(err))
	}

	c.logger.Info("summary cache miss", zap.String("hash", digest), zap.String("file", fileName))
	summary, err := c.summarizer.Summarize(ctx, content)
	if err != nil {
		return "", fmt.Errorf("failed to summarize %s: %w", fileName, err)
	}

	if err := c.store.PutSummary(ctx, models.SummaryEntry{Hash: digest, FileName: fileName, Summary: summary}); err != nil {
		c.logger.Warn("failed to store summary", zap.String("hash", digest), zap.Error(err))
	}
	return summary, nil
}

// BuildContext summarizes every file and joins the results with a blank
// line, in input order.
func (c *Cache) BuildContext(ctx context.Context, files []File) (string, error) {
	parts := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, f := range files {
		g.Go(func() error {
			s, err := c.GetOrCreateSummary(gctx, f.Content, f.Name)
			if err != nil {
				return err
			}
			parts[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(parts, "\n\n"), nil
}
