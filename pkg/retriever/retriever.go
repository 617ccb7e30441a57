package retriever

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

const (
	DefaultLimit = 15

	// RecencySimilarity is the score given to every recency hit: relevance
	// is unknown, only upload order is used.
	RecencySimilarity = 0.5

	DefaultExcerptChars = 1000
)

var (
	ErrNoEmbedding = errors.New("query embedding unavailable")
	ErrNoResults   = errors.New("no matching chunks")
)

// Strategy is one retrieval stage.
type Strategy interface {
	Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error)
}

// VectorStrategy embeds the query and ranks stored chunks by cosine
// similarity.
type VectorStrategy struct {
	Embedder types.Embedder
	Chunks   types.ChunkStore
	// MinSimilarity drops weaker hits when above zero.
	MinSimilarity float64
}

func (v *VectorStrategy) Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error) {
	embedding, err := v.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embedding) == 0 {
		return nil, ErrNoEmbedding
	}

	hits, err := v.Chunks.SearchChunks(ctx, embedding, limit)
	if err != nil {
		return nil, err
	}

	// Zero vectors score NaN in pgvector.
	kept := hits[:0]
	for _, h := range hits {
		if math.IsNaN(h.Similarity) || (v.MinSimilarity > 0 && h.Similarity < v.MinSimilarity) {
			continue
		}
		kept = append(kept, h)
	}
	hits = kept
	if len(hits) == 0 {
		return nil, ErrNoResults
	}
	return hits, nil
}

// RecencyStrategy returns the newest documents that have extracted text,
// each scored RecencySimilarity.
type RecencyStrategy struct {
	Documents    types.DocumentStore
	ExcerptChars int // 0 means DefaultExcerptChars, negative disables trimming
}

func (r *RecencyStrategy) Search(ctx context.Context, _ string, limit int) ([]models.RetrievedChunk, error) {
	docs, err := r.Documents.RecentDocumentsWithText(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent documents: %w", err)
	}

	excerpt := r.ExcerptChars
	if excerpt == 0 {
		excerpt = DefaultExcerptChars
	}

	hits := make([]models.RetrievedChunk, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, models.RetrievedChunk{
			Text:       truncateRunes(d.Text(), excerpt),
			FileName:   d.FileName,
			Similarity: RecencySimilarity,
		})
	}
	return hits, nil
}

func truncateRunes(s string, n int) string {
	if n < 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Retriever runs Primary and falls back to Secondary on any failure or
// empty result. It never returns an error.
type Retriever struct {
	Primary   Strategy
	Secondary Strategy
	logger    *zap.Logger
}

func New(primary, secondary Strategy, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{Primary: primary, Secondary: secondary, logger: logger}
}

// NewDefault wires the vector stage over store and embedder with the
// recency stage behind it.
func NewDefault(store interface {
	types.DocumentStore
	types.ChunkStore
}, embedder types.Embedder, minSimilarity float64, excerptChars int, logger *zap.Logger) *Retriever {
	var primary Strategy
	if embedder != nil {
		primary = &VectorStrategy{Embedder: embedder, Chunks: store, MinSimilarity: minSimilarity}
	}
	return New(primary, &RecencyStrategy{Documents: store, ExcerptChars: excerptChars}, logger)
}

// Search returns up to limit chunks; limit <= 0 means DefaultLimit.
func (r *Retriever) Search(ctx context.Context, query string, limit int) []models.RetrievedChunk {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if r.Primary != nil {
		hits, err := safeSearch(ctx, r.Primary, query, limit)
		if err == nil && len(hits) > 0 {
			return hits
		}
		switch {
		case errors.Is(err, types.ErrVectorUnsupported):
			r.logger.Debug("vector search unsupported, using recency fallback")
		case err != nil:
			r.logger.Warn("vector search failed, using recency fallback", zap.Error(err))
		}
	}

	if r.Secondary == nil {
		return []models.RetrievedChunk{}
	}
	hits, err := safeSearch(ctx, r.Secondary, query, limit)
	if err != nil {
		r.logger.Warn("fallback search failed", zap.Error(err))
		return []models.RetrievedChunk{}
	}
	return hits
}

func safeSearch(ctx context.Context, s Strategy, query string, limit int) (hits []models.RetrievedChunk, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			hits, err = nil, fmt.Errorf("search panicked: %v", rec)
		}
	}()
	return s.Search(ctx, query, limit)
}
