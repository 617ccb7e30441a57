package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

type VectorStoreConfig struct {
	ConnString string
	VectorDim  int
	BatchSize  int
}

// VectorStore is the Postgres store. When the vector extension cannot be
// enabled it still serves documents, chunks and summaries, and chunk
// search reports ErrVectorUnsupported.
type VectorStore struct {
	config        VectorStoreConfig
	pool          *pgxpool.Pool
	vectorEnabled bool
	logger        *zap.Logger
}

var _ types.Store = (*VectorStore)(nil)

func NewWithConfig(ctx context.Context, config VectorStoreConfig, logger *zap.Logger) (*VectorStore, error) {
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
		logger: logger,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) VectorEnabled() bool {
	return vs.vectorEnabled
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		vs.logger.Warn("vector extension unavailable, similarity search disabled", zap.Error(err))
	} else {
		vs.vectorEnabled = true
	}

	embeddingColumn := ""
	if vs.vectorEnabled {
		embeddingColumn = fmt.Sprintf(",\n\t\t\tembedding vector(%d)", vs.config.VectorDim)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS uploaded_files (
			id TEXT PRIMARY KEY,
			conversation_id TEXT REFERENCES conversations(id) ON DELETE SET NULL,
			file_name TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			size BIGINT NOT NULL,
			extracted_text TEXT,
			analysis TEXT,
			metadata JSONB,
			processed BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES uploaded_files(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL%s
		)`, embeddingColumn),
		`CREATE TABLE IF NOT EXISTS summaries (
			id BIGSERIAL PRIMARY KEY,
			hash VARCHAR(64) NOT NULL UNIQUE,
			summary TEXT NOT NULL,
			file_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS uploaded_files_created_at_idx ON uploaded_files (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at)`,
	}
	if vs.vectorEnabled {
		statements = append(statements, `CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
			ON document_chunks
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`)
	}

	for _, stmt := range statements {
		if _, err := vs.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func (vs *VectorStore) CreateDocument(ctx context.Context, doc *models.UploadedDocument) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := vs.pool.Exec(ctx, `
		INSERT INTO uploaded_files (id, conversation_id, file_name, mime_type, size, extracted_text, analysis, metadata, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID,
		doc.ConversationID,
		sanitizeText(doc.FileName),
		doc.MimeType,
		doc.Size,
		sanitizePtr(doc.ExtractedText),
		sanitizeText(doc.Analysis),
		doc.Metadata,
		doc.Processed,
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, conversation_id, file_name, mime_type, size, extracted_text, COALESCE(analysis, ''), metadata, processed, created_at`

func scanDocument(row pgx.Row) (*models.UploadedDocument, error) {
	var doc models.UploadedDocument
	err := row.Scan(
		&doc.ID,
		&doc.ConversationID,
		&doc.FileName,
		&doc.MimeType,
		&doc.Size,
		&doc.ExtractedText,
		&doc.Analysis,
		&doc.Metadata,
		&doc.Processed,
		&doc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (vs *VectorStore) GetDocument(ctx context.Context, id string) (*models.UploadedDocument, error) {
	doc, err := scanDocument(vs.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM uploaded_files WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (vs *VectorStore) ListDocuments(ctx context.Context, limit int) ([]models.UploadedDocument, error) {
	return vs.queryDocuments(ctx, `SELECT `+documentColumns+` FROM uploaded_files ORDER BY created_at DESC LIMIT $1`, limit)
}

func (vs *VectorStore) RecentDocumentsWithText(ctx context.Context, limit int) ([]models.UploadedDocument, error) {
	return vs.queryDocuments(ctx, `SELECT `+documentColumns+` FROM uploaded_files
		WHERE extracted_text IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit)
}

func (vs *VectorStore) queryDocuments(ctx context.Context, query string, limit int) ([]models.UploadedDocument, error) {
	rows, err := vs.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []models.UploadedDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (vs *VectorStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := vs.pool.Exec(ctx, `DELETE FROM uploaded_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (vs *VectorStore) StoreChunks(ctx context.Context, chunks []models.DocumentChunk) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := `INSERT INTO document_chunks (id, document_id, chunk_index, content) VALUES ($1, $2, $3, $4)`
	if vs.vectorEnabled {
		stmt = `INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding) VALUES ($1, $2, $3, $4, $5)`
	}

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for _, chunk := range chunks[start:end] {
			id := chunk.ID
			if id == "" {
				id = chunkID(chunk.DocumentID, chunk.Index)
			}
			args := []any{id, chunk.DocumentID, chunk.Index, sanitizeText(chunk.Text)}
			if vs.vectorEnabled {
				var embedding any
				if len(chunk.Embedding) > 0 {
					embedding = pgvector.NewVector(chunk.Embedding)
				}
				args = append(args, embedding)
			}
			batch.Queue(stmt, args...)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *VectorStore) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]models.RetrievedChunk, error) {
	if !vs.vectorEnabled {
		return nil, types.ErrVectorUnsupported
	}

	rows, err := vs.pool.Query(ctx, `
		SELECT c.content, f.file_name, 1 - (c.embedding <=> $1) AS similarity
		FROM document_chunks c
		JOIN uploaded_files f ON f.id = c.document_id
		WHERE c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.RetrievedChunk
	for rows.Next() {
		var chunk models.RetrievedChunk
		if err := rows.Scan(&chunk.Text, &chunk.FileName, &chunk.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, chunk)
	}
	return results, rows.Err()
}

func (vs *VectorStore) GetSummary(ctx context.Context, hash string) (*models.SummaryEntry, error) {
	var entry models.SummaryEntry
	err := vs.pool.QueryRow(ctx,
		`SELECT hash, file_name, summary, created_at FROM summaries WHERE hash = $1`, hash,
	).Scan(&entry.Hash, &entry.FileName, &entry.Summary, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return &entry, nil
}

func (vs *VectorStore) PutSummary(ctx context.Context, entry models.SummaryEntry) error {
	_, err := vs.pool.Exec(ctx, `
		INSERT INTO summaries (hash, file_name, summary)
		VALUES ($1, $2, $3)
		ON CONFLICT (hash) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			summary = EXCLUDED.summary`,
		entry.Hash, sanitizeText(entry.FileName), sanitizeText(entry.Summary))
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

func (vs *VectorStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	_, err := vs.pool.Exec(ctx,
		`INSERT INTO conversations (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		conv.ID, sanitizeText(conv.Title), conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

func (vs *VectorStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := vs.pool.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conv, nil
}

func (vs *VectorStore) ListConversations(ctx context.Context, limit int) ([]models.Conversation, error) {
	rows, err := vs.pool.Query(ctx, `
		SELECT id, title, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (vs *VectorStore) AddMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.ConversationID, msg.Role, sanitizeText(msg.Content), msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`, msg.ConversationID, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *VectorStore) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := vs.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
