package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/pkg/chat"
)

// Message types exchanged over /ws.
const (
	TypeChat     = "chat"
	TypeStatus   = "status"
	TypeResponse = "response"
	TypeError    = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the websocket envelope. Inbound chat messages may carry
// {"conversationId": "...", "includeContext": false} in Data; responses
// carry the chat.Response.
type Message struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) send(msgType, content string, data interface{}) error {
	msg := Message{Type: msgType, Content: content}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = raw
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(msg)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	if s.deps.Chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat is not enabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", zap.Error(err))
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("invalid websocket message", zap.Error(err))
			s.sendWS(ws, TypeError, "invalid message", nil)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, ws, msg)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, ws *wsConn, msg Message) {
	if msg.Type != "" && msg.Type != TypeChat {
		s.sendWS(ws, TypeError, "unsupported message type: "+msg.Type, nil)
		return
	}

	req := chatRequest{Message: msg.Content}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.sendWS(ws, TypeError, "invalid message data", nil)
			return
		}
		req.Message = msg.Content
	}

	s.sendWS(ws, TypeStatus, "thinking", nil)

	resp, err := s.deps.Chat.Chat(ctx, chat.Request{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		IncludeContext: req.IncludeContext == nil || *req.IncludeContext,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("websocket chat failed", zap.Error(err))
		}
		s.sendWS(ws, TypeError, err.Error(), nil)
		return
	}

	s.sendWS(ws, TypeResponse, resp.Response, resp)
}

func (s *Server) sendWS(ws *wsConn, msgType, content string, data interface{}) {
	if err := ws.send(msgType, content, data); err != nil {
		s.logger.Debug("error sending websocket message", zap.Error(err))
	}
}
