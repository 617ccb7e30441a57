package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/pkg/chat"
	"github.com/xhad/saccoassist/pkg/extractor"
	"github.com/xhad/saccoassist/pkg/ingest"
	"github.com/xhad/saccoassist/pkg/processor"
	"github.com/xhad/saccoassist/pkg/scraper"
	"github.com/xhad/saccoassist/pkg/store"
	"github.com/xhad/saccoassist/pkg/summary"
	"github.com/xhad/saccoassist/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCompleter struct{}

func (stubCompleter) Complete(_ context.Context, _, user string, _ int, _ float64) (string, error) {
	if strings.Contains(user, "DOCUMENTS: none available") {
		return "no context", nil
	}
	return "with context", nil
}

type stubAssembler struct{}

func (stubAssembler) AssembleContext(_ context.Context, _ string, include bool) string {
	if !include {
		return ""
	}
	return "minutes.txt: AGM held in March."
}

type stubSummarizer struct {
	calls atomic.Int32
}

func (s *stubSummarizer) Summarize(_ context.Context, content string) (string, error) {
	s.calls.Add(1)
	return "summary: " + content, nil
}

type stubWebsite struct {
	refreshed string
	ok        bool
}

func (w *stubWebsite) Refresh(_ context.Context, url string) scraper.RefreshResult {
	w.refreshed = url
	if !w.ok {
		return scraper.RefreshResult{Message: "Failed to scrape content: HTTP 500"}
	}
	return scraper.RefreshResult{Success: true, ContentUpdated: true, Message: "Content updated successfully from " + url}
}

func (w *stubWebsite) Status() scraper.Status {
	return scraper.Status{HasContent: w.refreshed != "", URL: w.refreshed}
}

type fixture struct {
	srv        *server.Server
	store      *store.MemoryStore
	summarizer *stubSummarizer
	website    *stubWebsite
}

func newFixture(t *testing.T, maxUpload int64) *fixture {
	t.Helper()
	st := store.NewMemory()

	ext, err := extractor.NewWithConfig(extractor.ExtractorConfig{Workers: 2}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(ext.Close)

	docs := ingest.New(
		extractor.NewPipeline(ext, nil, zap.NewNop()),
		st,
		processor.NewWithConfig(processor.ProcessorConfig{}),
		nil,
		ingest.Config{},
		zap.NewNop(),
	)
	summarizer := &stubSummarizer{}
	website := &stubWebsite{ok: true}

	srv := server.New(server.Deps{
		Documents: docs,
		Chat:      chat.New(st, stubCompleter{}, stubAssembler{}, chat.Config{}, zap.NewNop()),
		Website:   website,
		Summaries: summary.New(st, summarizer, summary.Config{}, zap.NewNop()),
	}, server.Config{MaxUploadBytes: maxUpload, WebsiteURL: "https://sacco.example.com/"}, zap.NewNop())

	return &fixture{srv: srv, store: st, summarizer: summarizer, website: website}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORS(t *testing.T) {
	f := newFixture(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://widget.example.com")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://widget.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadListDelete(t *testing.T) {
	f := newFixture(t, 0)

	w := f.upload(t, "bylaws.txt", "Members meet every quarter.")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[ingest.UploadResult](t, w)
	assert.NotEmpty(t, res.FileID)
	assert.Equal(t, "bylaws.txt", res.FileName)
	assert.Equal(t, "Members meet every quarter.", res.ExtractedText)
	assert.True(t, res.Processed)

	w = f.do(t, http.MethodGet, "/api/files", nil)
	require.Equal(t, http.StatusOK, w.Code)
	files := decode[[]map[string]interface{}](t, w)
	require.Len(t, files, 1)
	assert.Equal(t, res.FileID, files[0]["id"])
	assert.Equal(t, "bylaws.txt", files[0]["originalName"])
	assert.Equal(t, true, files[0]["hasText"])

	w = f.do(t, http.MethodDelete, "/api/files/"+res.FileID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodDelete, "/api/files/"+res.FileID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadWithoutFile(t *testing.T) {
	f := newFixture(t, 0)
	w := f.do(t, http.MethodPost, "/api/upload", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no file uploaded")
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, 64)
	w := f.upload(t, "big.txt", strings.Repeat("a", 1024))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUploadUnsupportedTypeIsStored(t *testing.T) {
	f := newFixture(t, 0)
	w := f.upload(t, "photo.png", "\x89PNG")
	require.Equal(t, http.StatusOK, w.Code)

	res := decode[ingest.UploadResult](t, w)
	assert.False(t, res.Processed)
	assert.Contains(t, res.ExtractedText, "photo.png")
}

func TestChat(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/chat", map[string]interface{}{"message": "When was the AGM?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[chat.Response](t, w)
	assert.Equal(t, "with context", resp.Response)
	require.NotEmpty(t, resp.ConversationID)

	w = f.do(t, http.MethodPost, "/api/chat", map[string]interface{}{
		"message":        "Thanks",
		"conversationId": resp.ConversationID,
		"includeContext": false,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no context", decode[chat.Response](t, w).Response)

	w = f.do(t, http.MethodGet, "/api/conversations/"+resp.ConversationID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Conversation models.Conversation `json:"conversation"`
		Messages     []models.Message    `json:"messages"`
	}](t, w)
	assert.Equal(t, "When was the AGM?", body.Conversation.Title)
	assert.Len(t, body.Messages, 4)
}

func TestListConversations(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	var ids []string
	for _, q := range []string{"What is the share price?", "When is the AGM?"} {
		w = f.do(t, http.MethodPost, "/api/chat", map[string]interface{}{"message": q})
		require.Equal(t, http.StatusOK, w.Code)
		ids = append(ids, decode[chat.Response](t, w).ConversationID)
	}

	w = f.do(t, http.MethodGet, "/api/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	convs := decode[[]models.Conversation](t, w)
	require.Len(t, convs, 2)
	assert.Equal(t, ids[1], convs[0].ID)
	assert.Equal(t, "When is the AGM?", convs[0].Title)
	assert.Equal(t, ids[0], convs[1].ID)
}

func TestChatErrors(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/chat", map[string]interface{}{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/chat", map[string]interface{}{"message": "hi", "conversationId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/conversations/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummaries(t *testing.T) {
	f := newFixture(t, 0)
	a := decode[ingest.UploadResult](t, f.upload(t, "a.txt", "alpha"))
	b := decode[ingest.UploadResult](t, f.upload(t, "b.txt", "beta"))

	for i := 0; i < 2; i++ {
		w := f.do(t, http.MethodPost, "/api/summaries", map[string]interface{}{"fileIds": []string{b.FileID, a.FileID}})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[map[string]string](t, w)
		assert.Equal(t, "=== DOCUMENT: b.txt ===\nsummary: beta\n\n=== DOCUMENT: a.txt ===\nsummary: alpha", got["context"])
	}
	assert.Equal(t, int32(2), f.summarizer.calls.Load())

	w := f.do(t, http.MethodPost, "/api/summaries", map[string]interface{}{"fileIds": []string{"missing"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/summaries", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebsiteRoutes(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodPost, "/api/website/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://sacco.example.com/", f.website.refreshed)
	assert.True(t, decode[scraper.RefreshResult](t, w).ContentUpdated)

	w = f.do(t, http.MethodGet, "/api/website/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[scraper.Status](t, w).HasContent)

	f.website.ok = false
	w = f.do(t, http.MethodPost, "/api/website/refresh", map[string]string{"url": "https://sacco.example.com/"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "https://sacco.example.com/", f.website.refreshed)
}

func TestWebsiteRefreshRejectsOtherHosts(t *testing.T) {
	f := newFixture(t, 0)

	for _, target := range []string{"https://other.example.com/", "http://169.254.169.254/latest/meta-data/", "http://localhost:6379/"} {
		w := f.do(t, http.MethodPost, "/api/website/refresh", map[string]string{"url": target})
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, decode[map[string]string](t, w)["error"], "configured website")
	}
	assert.Empty(t, f.website.refreshed)
}

func TestWebsiteDisabled(t *testing.T) {
	srv := server.New(server.Deps{}, server.Config{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/website/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebSocketChat(t *testing.T) {
	f := newFixture(t, 0)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, conn.WriteJSON(server.Message{Type: server.TypeChat, Content: "When was the AGM?"}))

	var status server.Message
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, server.TypeStatus, status.Type)

	var reply server.Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, server.TypeResponse, reply.Type)
	assert.Equal(t, "with context", reply.Content)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(reply.Data, &resp))
	assert.NotEmpty(t, resp.ConversationID)

	require.NoError(t, conn.WriteJSON(server.Message{Type: "image", Content: "draw"}))
	var bad server.Message
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, server.TypeError, bad.Type)
}
