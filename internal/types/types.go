package types

import (
	"context"

	"github.com/xhad/saccoassist/internal/models"
)

// Core interfaces
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, systemPrompt, userContent string, maxTokens int, temperature float64) (string, error)
}

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.UploadedDocument) error
	GetDocument(ctx context.Context, id string) (*models.UploadedDocument, error)
	ListDocuments(ctx context.Context, limit int) ([]models.UploadedDocument, error)
	// RecentDocumentsWithText returns documents whose extracted text is
	// non-null, newest first.
	RecentDocumentsWithText(ctx context.Context, limit int) ([]models.UploadedDocument, error)
	DeleteDocument(ctx context.Context, id string) error
}

type ChunkStore interface {
	StoreChunks(ctx context.Context, chunks []models.DocumentChunk) error
	// SearchChunks ranks chunks with an embedding by ascending cosine
	// distance. Stores without vector support return ErrVectorUnsupported.
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]models.RetrievedChunk, error)
}

type SummaryStore interface {
	// GetSummary returns ErrNotFound on a miss.
	GetSummary(ctx context.Context, hash string) (*models.SummaryEntry, error)
	PutSummary(ctx context.Context, entry models.SummaryEntry) error
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// ListConversations returns up to limit conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, limit int) ([]models.Conversation, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
}

type Store interface {
	DocumentStore
	ChunkStore
	SummaryStore
	ConversationStore
	Close()
}
