package models

import "time"

type UploadedDocument struct {
	ID             string                 `json:"id"`
	ConversationID *string                `json:"conversation_id,omitempty"`
	FileName       string                 `json:"file_name"`
	MimeType       string                 `json:"mime_type"`
	Size           int64                  `json:"size"`
	ExtractedText  *string                `json:"extracted_text,omitempty"`
	Analysis       string                 `json:"analysis,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Processed      bool                   `json:"processed"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Text returns the extracted text or "" when the document has none.
func (d UploadedDocument) Text() string {
	if d.ExtractedText == nil {
		return ""
	}
	return *d.ExtractedText
}

type DocumentChunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
}

type SummaryEntry struct {
	Hash      string    `json:"hash"`
	FileName  string    `json:"file_name"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// RetrievedChunk is a per-query search hit. Similarity is 1 - cosine
// distance on the vector path and a fixed score on the recency path.
type RetrievedChunk struct {
	Text       string  `json:"text"`
	FileName   string  `json:"file_name"`
	Similarity float64 `json:"similarity"`
}
