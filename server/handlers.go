package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/types"
	"github.com/xhad/saccoassist/pkg/chat"
	"github.com/xhad/saccoassist/pkg/ingest"
	"github.com/xhad/saccoassist/pkg/summary"
)

type fileInfo struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	FileSize     int64     `json:"fileSize"`
	Processed    bool      `json:"processed"`
	UploadedAt   time.Time `json:"uploadedAt"`
	HasText      bool      `json:"hasText"`
	TextLength   int       `json:"textLength"`
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	IncludeContext *bool  `json:"includeContext"`
}

type summariesRequest struct {
	FileIDs []string `json:"fileIds"`
}

type refreshRequest struct {
	URL string `json:"url"`
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": ingest.ErrEmptyUpload.Error()})
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	up := ingest.Upload{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}
	if id := c.PostForm("conversationId"); id != "" {
		up.ConversationID = &id
	}

	result, err := s.deps.Documents.Upload(c.Request.Context(), up)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyUpload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("upload failed", zap.String("file", header.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) listFiles(c *gin.Context) {
	docs, err := s.deps.Documents.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	files := make([]fileInfo, 0, len(docs))
	for _, d := range docs {
		text := d.Text()
		files = append(files, fileInfo{
			ID:           d.ID,
			OriginalName: d.FileName,
			MimeType:     d.MimeType,
			FileSize:     d.Size,
			Processed:    d.Processed,
			UploadedAt:   d.CreatedAt,
			HasText:      d.ExtractedText != nil,
			TextLength:   len(text),
		})
	}
	c.JSON(http.StatusOK, files)
}

func (s *Server) deleteFile(c *gin.Context) {
	if err := s.deps.Documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// summaries returns the cached per-document summaries of the requested
// files, joined in request order.
func (s *Server) summaries(c *gin.Context) {
	if s.deps.Summaries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summaries are not enabled"})
		return
	}

	var req summariesRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.FileIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fileIds is required"})
		return
	}

	ctx := c.Request.Context()
	files := make([]summary.File, 0, len(req.FileIDs))
	for _, id := range req.FileIDs {
		doc, err := s.deps.Documents.Get(ctx, id)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "file not found: " + id})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		files = append(files, summary.File{Name: doc.FileName, Content: doc.Text()})
	}

	out, err := s.deps.Summaries.BuildContext(ctx, files)
	if err != nil {
		s.logger.Error("summary build failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": out})
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": chat.ErrEmptyMessage.Error()})
		return
	}

	include := req.IncludeContext == nil || *req.IncludeContext
	resp, err := s.deps.Chat.Chat(c.Request.Context(), chat.Request{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		IncludeContext: include,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, chat.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	default:
		s.logger.Error("chat failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process chat message"})
	}
}

func (s *Server) conversations(c *gin.Context) {
	convs, err := s.deps.Chat.Conversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch conversations"})
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (s *Server) conversation(c *gin.Context) {
	conv, msgs, err := s.deps.Chat.Conversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
}

func (s *Server) refreshWebsite(c *gin.Context) {
	if s.deps.Website == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "website content is disabled"})
		return
	}

	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	// Only the configured site may be fetched from the API.
	if req.URL != "" && req.URL != s.config.WebsiteURL {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url does not match the configured website"})
		return
	}

	result := s.deps.Website.Refresh(c.Request.Context(), s.config.WebsiteURL)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

func (s *Server) websiteStatus(c *gin.Context) {
	if s.deps.Website == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "website content is disabled"})
		return
	}
	c.JSON(http.StatusOK, s.deps.Website.Status())
}
