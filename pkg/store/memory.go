package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

// MemoryStore keeps everything in process memory and ranks chunks by
// cosine distance in Go. It is meant for local runs and tests.
type MemoryStore struct {
	mu            sync.RWMutex
	seq           int
	documents     map[string]*memDocument
	chunks        []models.DocumentChunk
	summaries     map[string]models.SummaryEntry
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
}

type memDocument struct {
	doc models.UploadedDocument
	seq int
}

var _ types.Store = (*MemoryStore)(nil)

func NewMemory() *MemoryStore {
	return &MemoryStore{
		documents:     make(map[string]*memDocument),
		summaries:     make(map[string]models.SummaryEntry),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
	}
}

func (m *MemoryStore) CreateDocument(_ context.Context, doc *models.UploadedDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	m.seq++
	m.documents[doc.ID] = &memDocument{doc: *doc, seq: m.seq}
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, id string) (*models.UploadedDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.documents[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	doc := d.doc
	return &doc, nil
}

func (m *MemoryStore) ListDocuments(_ context.Context, limit int) ([]models.UploadedDocument, error) {
	return m.recent(limit, func(models.UploadedDocument) bool { return true }), nil
}

func (m *MemoryStore) RecentDocumentsWithText(_ context.Context, limit int) ([]models.UploadedDocument, error) {
	return m.recent(limit, func(d models.UploadedDocument) bool { return d.ExtractedText != nil }), nil
}

// recent returns matching documents newest first, ties broken by insert order.
func (m *MemoryStore) recent(limit int, keep func(models.UploadedDocument) bool) []models.UploadedDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*memDocument, 0, len(m.documents))
	for _, d := range m.documents {
		if keep(d.doc) {
			all = append(all, d)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].doc.CreatedAt.Equal(all[j].doc.CreatedAt) {
			return all[i].doc.CreatedAt.After(all[j].doc.CreatedAt)
		}
		return all[i].seq > all[j].seq
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]models.UploadedDocument, len(all))
	for i, d := range all {
		out[i] = d.doc
	}
	return out
}

func (m *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[id]; !ok {
		return types.ErrNotFound
	}
	delete(m.documents, id)

	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	m.chunks = kept
	return nil
}

func (m *MemoryStore) StoreChunks(_ context.Context, chunks []models.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		if c.ID == "" {
			c.ID = chunkID(c.DocumentID, c.Index)
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		m.chunks = append(m.chunks, c)
	}
	return nil
}

func (m *MemoryStore) SearchChunks(_ context.Context, embedding []float32, limit int) ([]models.RetrievedChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		chunk    models.RetrievedChunk
		distance float64
	}
	var hits []scored
	for _, c := range m.chunks {
		if len(c.Embedding) == 0 || len(c.Embedding) != len(embedding) {
			continue
		}
		fileName := ""
		if d, ok := m.documents[c.DocumentID]; ok {
			fileName = d.doc.FileName
		}
		distance := CosineDistance(c.Embedding, embedding)
		if math.IsNaN(distance) {
			continue
		}
		hits = append(hits, scored{
			chunk:    models.RetrievedChunk{Text: c.Text, FileName: fileName, Similarity: 1 - distance},
			distance: distance,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].distance < hits[j].distance })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]models.RetrievedChunk, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out, nil
}

// CosineDistance matches pgvector's <=> operator: 1 - cosine similarity.
// A zero vector yields NaN, as in pgvector; SearchChunks skips those.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (m *MemoryStore) GetSummary(_ context.Context, hash string) (*models.SummaryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.summaries[hash]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &entry, nil
}

func (m *MemoryStore) PutSummary(_ context.Context, entry models.SummaryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.summaries[entry.Hash] = entry
	return nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = now
	m.conversations[conv.ID] = *conv
	return nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &conv, nil
}

func (m *MemoryStore) ListConversations(_ context.Context, limit int) ([]models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	convs := make([]models.Conversation, 0, len(m.conversations))
	for _, c := range m.conversations {
		convs = append(convs, c)
	}
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].ID < convs[j].ID
	})
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

func (m *MemoryStore) AddMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[msg.ConversationID]
	if !ok {
		return types.ErrNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	conv.UpdatedAt = msg.CreatedAt
	m.conversations[conv.ID] = conv
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], *msg)
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]models.Message(nil), m.messages[conversationID]...), nil
}

func (m *MemoryStore) Close() {}
