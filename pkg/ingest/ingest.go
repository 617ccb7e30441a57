package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
	"github.com/xhad/saccoassist/pkg/extractor"
	"github.com/xhad/saccoassist/pkg/processor"
)

var ErrEmptyUpload = errors.New("no file uploaded")

type Config struct {
	ListLimit        int // default 100
	EmbedConcurrency int // default 4
}

type Upload struct {
	FileName       string
	MimeType       string
	Data           []byte
	ConversationID *string
}

type UploadResult struct {
	FileID        string `json:"fileId"`
	FileName      string `json:"fileName"`
	ExtractedText string `json:"extractedText"`
	Analysis      string `json:"analysis"`
	Processed     bool   `json:"processed"`
	Chunks        int    `json:"chunks"`
}

// Store is what ingestion needs from persistence.
type Store interface {
	types.DocumentStore
	types.ChunkStore
}

// Service is the upload handler: extract, persist, then index.
type Service struct {
	config    Config
	pipeline  *extractor.Pipeline
	store     Store
	processor processor.Processor
	embedder  types.Embedder
	logger    *zap.Logger
}

// New returns a Service. embedder may be nil, in which case chunks are
// stored without embeddings.
func New(pipeline *extractor.Pipeline, store Store, proc processor.Processor, embedder types.Embedder, config Config, logger *zap.Logger) *Service {
	if config.ListLimit <= 0 {
		config.ListLimit = 100
	}
	if config.EmbedConcurrency <= 0 {
		config.EmbedConcurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		config:    config,
		pipeline:  pipeline,
		store:     store,
		processor: proc,
		embedder:  embedder,
		logger:    logger,
	}
}

// Upload stores the document even when extraction fails; the extracted
// text then carries the error. Only a persistence failure is returned.
func (s *Service) Upload(ctx context.Context, up Upload) (*UploadResult, error) {
	if up.FileName == "" || len(up.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	res := s.pipeline.Process(ctx, up.Data, up.FileName, up.MimeType)

	metadata := map[string]interface{}{
		"kind": res.Kind.Label(),
	}
	if res.RowCount > 0 {
		metadata["rowCount"] = res.RowCount
	}
	if res.Pages > 0 {
		metadata["pages"] = res.Pages
	}
	if res.Err != nil {
		metadata["error"] = res.Err.Error()
	}

	text := res.ExtractedText
	doc := models.UploadedDocument{
		ID:             uuid.NewString(),
		ConversationID: up.ConversationID,
		FileName:       up.FileName,
		MimeType:       up.MimeType,
		Size:           int64(len(up.Data)),
		ExtractedText:  &text,
		Analysis:       res.Analysis,
		Metadata:       metadata,
		Processed:      res.Processed(),
	}
	if err := s.store.CreateDocument(ctx, &doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	s.logger.Info("document uploaded",
		zap.String("id", doc.ID),
		zap.String("file", doc.FileName),
		zap.Bool("processed", doc.Processed),
	)

	result := &UploadResult{
		FileID:        doc.ID,
		FileName:      doc.FileName,
		ExtractedText: text,
		Analysis:      res.Analysis,
		Processed:     doc.Processed,
	}

	if doc.Processed {
		n, err := s.index(ctx, doc)
		if err != nil {
			s.logger.Warn("failed to index document", zap.String("id", doc.ID), zap.Error(err))
		}
		result.Chunks = n
	}
	return result, nil
}

// index chunks the document, embeds each chunk when the store can search
// by vector, and stores the chunks.
func (s *Service) index(ctx context.Context, doc models.UploadedDocument) (int, error) {
	chunks := s.processor.ChunkDocument(doc)
	if len(chunks) == 0 {
		return 0, nil
	}

	if s.embedder != nil && s.vectorsEnabled() {
		if err := s.embed(ctx, chunks); err != nil {
			s.logger.Warn("embedding failed, storing chunks without vectors", zap.String("id", doc.ID), zap.Error(err))
			for i := range chunks {
				chunks[i].Embedding = nil
			}
		}
	}

	if err := s.store.StoreChunks(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *Service) vectorsEnabled() bool {
	if v, ok := s.store.(interface{ VectorEnabled() bool }); ok {
		return v.VectorEnabled()
	}
	return true
}

func (s *Service) embed(ctx context.Context, chunks []models.DocumentChunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.EmbedConcurrency)
	for i := range chunks {
		g.Go(func() error {
			emb, err := s.embedder.Embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if len(emb) > 0 {
				chunks[i].Embedding = emb
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) List(ctx context.Context) ([]models.UploadedDocument, error) {
	docs, err := s.store.ListDocuments(ctx, s.config.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Delete removes a document and its chunks. It returns types.ErrNotFound
// for an unknown id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteDocument(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*models.UploadedDocument, error) {
	return s.store.GetDocument(ctx, id)
}
