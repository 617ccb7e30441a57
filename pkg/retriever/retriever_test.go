package retriever_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
	"github.com/xhad/saccoassist/pkg/retriever"
	"github.com/xhad/saccoassist/pkg/store"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return s.vec, s.err
}

type panicStrategy struct{}

func (panicStrategy) Search(context.Context, string, int) ([]models.RetrievedChunk, error) {
	panic("driver bug")
}

type failingStrategy struct{ err error }

func (f failingStrategy) Search(context.Context, string, int) ([]models.RetrievedChunk, error) {
	return nil, f.err
}

// seed stores n documents with text, oldest first, plus one without text.
func seed(t *testing.T, s *store.MemoryStore, n int) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("text of doc %d", i)
		require.NoError(t, s.CreateDocument(context.Background(), &models.UploadedDocument{
			ID:            fmt.Sprintf("doc-%d", i),
			FileName:      fmt.Sprintf("doc-%d.txt", i),
			ExtractedText: &text,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.CreateDocument(context.Background(), &models.UploadedDocument{
		ID: "no-text", FileName: "scan.png", CreatedAt: base.Add(100 * time.Hour),
	}))
}

func TestSearchFallsBackWhenEmbeddingFails(t *testing.T) {
	for _, count := range []int{3, 20} {
		t.Run(fmt.Sprintf("%d docs", count), func(t *testing.T) {
			s := store.NewMemory()
			seed(t, s, count)
			r := retriever.NewDefault(s, stubEmbedder{err: errors.New("ollama down")}, 0, 0, zap.NewNop())

			const limit = 15
			hits := r.Search(context.Background(), "loan terms", limit)

			want := count
			if want > limit {
				want = limit
			}
			require.Len(t, hits, want)
			for i, h := range hits {
				assert.Equal(t, retriever.RecencySimilarity, h.Similarity)
				assert.Equal(t, fmt.Sprintf("doc-%d.txt", count-1-i), h.FileName)
			}
		})
	}
}

func TestSearchFallsBackOnEmptyEmbedding(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, 2)
	r := retriever.NewDefault(s, stubEmbedder{vec: []float32{}}, 0, 0, zap.NewNop())

	hits := r.Search(context.Background(), "q", 5)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-1.txt", hits[0].FileName)
}

func TestSearchUsesVectorPath(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s, 1)
	require.NoError(t, s.StoreChunks(ctx, []models.DocumentChunk{
		{DocumentID: "doc-0", Index: 0, Text: "loans at 1% monthly", Embedding: []float32{1, 0}},
		{DocumentID: "doc-0", Index: 1, Text: "board meeting dates", Embedding: []float32{0, 1}},
	}))
	r := retriever.NewDefault(s, stubEmbedder{vec: []float32{1, 0.1}}, 0, 0, zap.NewNop())

	hits := r.Search(ctx, "loan interest", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "loans at 1% monthly", hits[0].Text)
	assert.Greater(t, hits[0].Similarity, 0.9)
}

func TestSearchZeroVectorRowsFallsBack(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, 2) // documents but no chunks
	r := retriever.NewDefault(s, stubEmbedder{vec: []float32{1, 0}}, 0, 0, zap.NewNop())

	hits := r.Search(context.Background(), "q", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, retriever.RecencySimilarity, hits[0].Similarity)
}

type fixedChunks struct{ hits []models.RetrievedChunk }

func (f fixedChunks) StoreChunks(context.Context, []models.DocumentChunk) error { return nil }

func (f fixedChunks) SearchChunks(context.Context, []float32, int) ([]models.RetrievedChunk, error) {
	return append([]models.RetrievedChunk(nil), f.hits...), nil
}

func TestVectorStrategyDropsNaNSimilarity(t *testing.T) {
	v := &retriever.VectorStrategy{
		Embedder: stubEmbedder{vec: []float32{1, 0}},
		Chunks: fixedChunks{hits: []models.RetrievedChunk{
			{Text: "dividends", FileName: "agm.txt", Similarity: 0.8},
			{Text: "zero vector row", FileName: "agm.txt", Similarity: math.NaN()},
			{Text: "unrelated", FileName: "agm.txt", Similarity: -0.2},
		}},
	}

	hits, err := v.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "dividends", hits[0].Text)
	assert.Equal(t, "unrelated", hits[1].Text)

	v.Chunks = fixedChunks{hits: []models.RetrievedChunk{{Text: "zero vector row", Similarity: math.NaN()}}}
	_, err = v.Search(context.Background(), "q", 10)
	assert.ErrorIs(t, err, retriever.ErrNoResults)
}

func TestSearchMinSimilarityFallsBack(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seed(t, s, 1)
	require.NoError(t, s.StoreChunks(ctx, []models.DocumentChunk{
		{DocumentID: "doc-0", Index: 0, Text: "weak", Embedding: []float32{0, 1}},
	}))
	r := retriever.NewDefault(s, stubEmbedder{vec: []float32{1, 0.01}}, 0.5, 0, zap.NewNop())

	hits := r.Search(ctx, "q", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, retriever.RecencySimilarity, hits[0].Similarity)
}

func TestSearchVectorUnsupportedFallsBack(t *testing.T) {
	s, err := store.NewSQLite(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	text := "bylaws"
	require.NoError(t, s.CreateDocument(context.Background(), &models.UploadedDocument{ID: "a", FileName: "bylaws.pdf", ExtractedText: &text}))

	r := retriever.NewDefault(s, stubEmbedder{vec: []float32{1}}, 0, 0, zap.NewNop())
	hits := r.Search(context.Background(), "q", 0)
	require.Len(t, hits, 1)
	assert.Equal(t, "bylaws.pdf", hits[0].FileName)
}

func TestSearchNeverFails(t *testing.T) {
	boom := failingStrategy{err: errors.New("db gone")}

	r := retriever.New(panicStrategy{}, boom, zap.NewNop())
	hits := r.Search(context.Background(), "q", 5)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	r = retriever.New(boom, panicStrategy{}, zap.NewNop())
	assert.Empty(t, r.Search(context.Background(), "q", 5))

	r = retriever.New(nil, nil, nil)
	assert.Empty(t, r.Search(context.Background(), "q", 5))
}

func TestSearchForcedSecondary(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, 4)
	r := retriever.New(failingStrategy{err: types.ErrVectorUnsupported}, &retriever.RecencyStrategy{Documents: s}, nil)

	hits := r.Search(context.Background(), "q", 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "doc-3.txt", hits[0].FileName)
	assert.Equal(t, "doc-2.txt", hits[1].FileName)
}

func TestRecencyStrategyExcerpt(t *testing.T) {
	s := store.NewMemory()
	long := strings.Repeat("é", 1500)
	require.NoError(t, s.CreateDocument(context.Background(), &models.UploadedDocument{ID: "a", FileName: "a.txt", ExtractedText: &long}))

	hits, err := (&retriever.RecencyStrategy{Documents: s}).Search(context.Background(), "", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, retriever.DefaultExcerptChars, len([]rune(hits[0].Text)))

	hits, err = (&retriever.RecencyStrategy{Documents: s, ExcerptChars: -1}).Search(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Equal(t, long, hits[0].Text)
}

func TestSearchDefaultLimit(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, 30)
	r := retriever.New(nil, &retriever.RecencyStrategy{Documents: s}, nil)

	assert.Len(t, r.Search(context.Background(), "q", 0), retriever.DefaultLimit)
}
