package ingest_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/types"
	"github.com/xhad/saccoassist/pkg/extractor"
	"github.com/xhad/saccoassist/pkg/ingest"
	"github.com/xhad/saccoassist/pkg/processor"
	"github.com/xhad/saccoassist/pkg/store"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, _, fileName, typeLabel string) (string, error) {
	return "analysis of " + fileName + " (" + typeLabel + ")", nil
}

type stubEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	if strings.Contains(text, "A,10") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func newService(t *testing.T, st ingest.Store, emb types.Embedder) *ingest.Service {
	t.Helper()
	ext, err := extractor.NewWithConfig(extractor.ExtractorConfig{Workers: 2}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(ext.Close)

	pipeline := extractor.NewPipeline(ext, stubAnalyzer{}, zap.NewNop())
	proc := processor.NewWithConfig(processor.ProcessorConfig{})
	return ingest.New(pipeline, st, proc, emb, ingest.Config{}, zap.NewNop())
}

func TestUploadCSV(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	emb := &stubEmbedder{}
	svc := newService(t, st, emb)

	res, err := svc.Upload(ctx, ingest.Upload{
		FileName: "members.csv",
		MimeType: "text/csv",
		Data:     []byte("name,amount\nA,10\nB,20"),
	})
	require.NoError(t, err)

	assert.True(t, res.Processed)
	assert.NotEmpty(t, res.FileID)
	assert.Contains(t, res.ExtractedText, "Total Rows: 2")
	assert.Contains(t, res.ExtractedText, "A,10\nB,20")
	assert.Equal(t, "analysis of members.csv (csv)", res.Analysis)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, int32(1), emb.calls.Load())

	doc, err := st.GetDocument(ctx, res.FileID)
	require.NoError(t, err)
	assert.Equal(t, "members.csv", doc.FileName)
	assert.Equal(t, int64(len("name,amount\nA,10\nB,20")), doc.Size)
	assert.Equal(t, "csv", doc.Metadata["kind"])
	assert.Equal(t, 2, doc.Metadata["rowCount"])

	hits, err := st.SearchChunks(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "members.csv", hits[0].FileName)
}

func TestUploadUnsupportedIsStoredWithError(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	emb := &stubEmbedder{}
	svc := newService(t, st, emb)

	res, err := svc.Upload(ctx, ingest.Upload{FileName: "photo.png", MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)

	assert.False(t, res.Processed)
	assert.True(t, strings.HasPrefix(res.ExtractedText, "Could not extract text from photo.png:"))
	assert.Contains(t, res.ExtractedText, "image/png")
	assert.True(t, strings.HasPrefix(res.Analysis, "Error processing file:"))
	assert.Zero(t, res.Chunks)
	assert.Zero(t, emb.calls.Load())

	doc, err := st.GetDocument(ctx, res.FileID)
	require.NoError(t, err)
	assert.False(t, doc.Processed)
	assert.Contains(t, doc.Metadata["error"], "image/png")
}

func TestUploadEmbeddingFailureKeepsDocument(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	svc := newService(t, st, &stubEmbedder{err: errors.New("embedding model missing")})

	res, err := svc.Upload(ctx, ingest.Upload{FileName: "rates.txt", MimeType: "text/plain", Data: []byte("Loan interest is 1% per month.")})
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, 1, res.Chunks)

	hits, err := st.SearchChunks(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUploadSkipsEmbeddingWithoutVectorSupport(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(ctx, ":memory:", zap.NewNop())
	require.NoError(t, err)
	defer st.Close()

	emb := &stubEmbedder{}
	svc := newService(t, st, emb)

	res, err := svc.Upload(ctx, ingest.Upload{FileName: "rates.txt", MimeType: "text/plain", Data: []byte("Loan interest is 1% per month.")})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)
	assert.Zero(t, emb.calls.Load())
}

func TestUploadEmpty(t *testing.T) {
	svc := newService(t, store.NewMemory(), nil)

	_, err := svc.Upload(context.Background(), ingest.Upload{FileName: "a.txt"})
	assert.ErrorIs(t, err, ingest.ErrEmptyUpload)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, store.NewMemory(), nil)

	first, err := svc.Upload(ctx, ingest.Upload{FileName: "a.txt", MimeType: "text/plain", Data: []byte("alpha")})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, ingest.Upload{FileName: "b.txt", MimeType: "text/plain", Data: []byte("beta")})
	require.NoError(t, err)

	docs, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b.txt", docs[0].FileName)

	require.NoError(t, svc.Delete(ctx, first.FileID))
	assert.ErrorIs(t, svc.Delete(ctx, first.FileID), types.ErrNotFound)

	docs, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
