package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

func strPtr(s string) *string { return &s }

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, s types.Store, prefix string) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("documents", func(t *testing.T) {
		docs := []models.UploadedDocument{
			{ID: prefix + "doc-old", FileName: "bylaws.pdf", MimeType: "application/pdf", Size: 10, ExtractedText: strPtr("Bylaws text"), Processed: true, CreatedAt: base},
			{ID: prefix + "doc-notext", FileName: "photo.png", MimeType: "image/png", Size: 5, CreatedAt: base.Add(time.Minute)},
			{ID: prefix + "doc-new", FileName: "loans.csv", MimeType: "text/csv", Size: 20, ExtractedText: strPtr("Total Rows: 2"), Processed: true,
				Metadata: map[string]interface{}{"kind": "csv"}, CreatedAt: base.Add(2 * time.Minute)},
		}
		for i := range docs {
			require.NoError(t, s.CreateDocument(ctx, &docs[i]))
		}

		got, err := s.GetDocument(ctx, prefix+"doc-new")
		require.NoError(t, err)
		assert.Equal(t, "loans.csv", got.FileName)
		assert.Equal(t, "Total Rows: 2", got.Text())
		assert.Equal(t, "csv", got.Metadata["kind"])
		assert.True(t, got.Processed)

		_, err = s.GetDocument(ctx, prefix+"missing")
		assert.ErrorIs(t, err, types.ErrNotFound)

		withText, err := s.RecentDocumentsWithText(ctx, 10)
		require.NoError(t, err)
		var ids []string
		for _, d := range withText {
			if d.ID == prefix+"doc-new" || d.ID == prefix+"doc-old" || d.ID == prefix+"doc-notext" {
				ids = append(ids, d.ID)
			}
		}
		assert.Equal(t, []string{prefix + "doc-new", prefix + "doc-old"}, ids)

		limited, err := s.RecentDocumentsWithText(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("chunks cascade with document", func(t *testing.T) {
		doc := models.UploadedDocument{ID: prefix + "doc-del", FileName: "tmp.txt", MimeType: "text/plain", ExtractedText: strPtr("x")}
		require.NoError(t, s.CreateDocument(ctx, &doc))
		require.NoError(t, s.StoreChunks(ctx, []models.DocumentChunk{{DocumentID: doc.ID, Index: 0, Text: "chunk"}}))

		require.NoError(t, s.DeleteDocument(ctx, doc.ID))
		assert.ErrorIs(t, s.DeleteDocument(ctx, doc.ID), types.ErrNotFound)
	})

	t.Run("summaries upsert", func(t *testing.T) {
		hash := prefix + "abc123"
		_, err := s.GetSummary(ctx, hash)
		assert.ErrorIs(t, err, types.ErrNotFound)

		require.NoError(t, s.PutSummary(ctx, models.SummaryEntry{Hash: hash, FileName: "a.txt", Summary: "first"}))
		require.NoError(t, s.PutSummary(ctx, models.SummaryEntry{Hash: hash, FileName: "b.txt", Summary: "second"}))

		entry, err := s.GetSummary(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, "second", entry.Summary)
		assert.Equal(t, "b.txt", entry.FileName)
	})

	t.Run("conversations", func(t *testing.T) {
		conv := models.Conversation{ID: prefix + "conv-1", Title: "Loan question"}
		require.NoError(t, s.CreateConversation(ctx, &conv))

		for i, content := range []string{"How much can I borrow?", "Up to three times your savings."} {
			role := models.RoleUser
			if i == 1 {
				role = models.RoleAssistant
			}
			msg := models.Message{ID: prefix + "msg-" + string(rune('a'+i)), ConversationID: conv.ID, Role: role, Content: content,
				CreatedAt: base.Add(time.Duration(i) * time.Second)}
			require.NoError(t, s.AddMessage(ctx, &msg))
		}

		got, err := s.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, "Loan question", got.Title)

		msgs, err := s.ListMessages(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, models.RoleUser, msgs[0].Role)
		assert.Equal(t, models.RoleAssistant, msgs[1].Role)

		_, err = s.GetConversation(ctx, prefix+"nope")
		assert.ErrorIs(t, err, types.ErrNotFound)

		recent := models.Conversation{ID: prefix + "conv-2", Title: "Dividend date"}
		require.NoError(t, s.CreateConversation(ctx, &recent))

		convs, err := s.ListConversations(ctx, 1)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, recent.ID, convs[0].ID)
		assert.Equal(t, "Dividend date", convs[0].Title)

		convs, err = s.ListConversations(ctx, 1000)
		require.NoError(t, err)
		var ids []string
		for _, c := range convs {
			ids = append(ids, c.ID)
		}
		assert.Contains(t, ids, conv.ID)
		for i := 1; i < len(convs); i++ {
			assert.False(t, convs[i].UpdatedAt.After(convs[i-1].UpdatedAt), "conversations out of order at %d", i)
		}
	})
}
