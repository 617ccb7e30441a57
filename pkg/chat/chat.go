package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xhad/saccoassist/internal/models"
	"github.com/xhad/saccoassist/internal/types"
)

const (
	simpleSystemPrompt = `You are the SOYOSOYO SACCO Assistant. Provide brief, direct answers using the documents.

RESPONSE RULES:
- Keep answers concise (1-3 sentences for simple questions)
- Include specific names, amounts, or details when asked
- Use **bold** for key information only
- No unnecessary formatting or explanations`

	complexSystemPrompt = `You are the SOYOSOYO SACCO Assistant. Provide comprehensive information using the documents.

RESPONSE RULES:
- Detailed responses for complex questions
- Include relevant details like names, amounts, procedures
- Use **bold** for important information
- Use bullet points for lists when helpful
- Be thorough but avoid redundancy`

	// FallbackReply is stored and returned when the model call fails.
	FallbackReply = "I'm currently experiencing technical difficulties. Please try again."

	titleLength = 100
)

var ErrEmptyMessage = errors.New("message is required")

// ContextAssembler supplies document and website grounding for a question.
type ContextAssembler interface {
	AssembleContext(ctx context.Context, query string, includeContext bool) string
}

type Config struct {
	Temperature float64 // default 0.1
	ListLimit   int     // conversations listed, default 100
}

type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	IncludeContext bool   `json:"includeContext"`
}

type Response struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// Service answers member questions and keeps the conversation history.
type Service struct {
	config    Config
	store     types.ConversationStore
	completer types.Completer
	assembler ContextAssembler
	logger    *zap.Logger
}

func New(store types.ConversationStore, completer types.Completer, assembler ContextAssembler, config Config, logger *zap.Logger) *Service {
	if config.Temperature == 0 {
		config.Temperature = 0.1
	}
	if config.ListLimit <= 0 {
		config.ListLimit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		config:    config,
		store:     store,
		completer: completer,
		assembler: assembler,
		logger:    logger,
	}
}

// Chat stores the question, answers it and stores the answer. A model
// failure is answered with FallbackReply rather than an error.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	conversationID, err := s.conversation(ctx, req.ConversationID, message)
	if err != nil {
		return nil, err
	}

	if err := s.store.AddMessage(ctx, &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        message,
	}); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	var grounding string
	if s.assembler != nil {
		grounding = s.assembler.AssembleContext(ctx, message, req.IncludeContext)
	}

	complexity := AnalyzeComplexity(message)
	system, user := buildPrompt(message, grounding, complexity)
	s.logger.Debug("sending chat completion",
		zap.String("conversation_id", conversationID),
		zap.Bool("simple", complexity.Simple),
		zap.Int("max_tokens", complexity.MaxTokens),
		zap.Int("context_chars", len(grounding)),
	)

	reply, err := s.completer.Complete(ctx, system, user, complexity.MaxTokens, s.config.Temperature)
	if err != nil || strings.TrimSpace(reply) == "" {
		s.logger.Error("chat completion failed", zap.String("conversation_id", conversationID), zap.Error(err))
		reply = FallbackReply
	}

	assistant := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        reply,
	}
	if err := s.store.AddMessage(ctx, &assistant); err != nil {
		return nil, fmt.Errorf("failed to save response: %w", err)
	}

	return &Response{
		Response:       reply,
		ConversationID: conversationID,
		MessageID:      assistant.ID,
	}, nil
}

func (s *Service) conversation(ctx context.Context, id, message string) (string, error) {
	if id != "" {
		if _, err := s.store.GetConversation(ctx, id); err != nil {
			return "", fmt.Errorf("failed to load conversation %s: %w", id, err)
		}
		return id, nil
	}

	conv := models.Conversation{ID: uuid.NewString(), Title: title(message)}
	if err := s.store.CreateConversation(ctx, &conv); err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	s.logger.Info("created conversation", zap.String("conversation_id", conv.ID))
	return conv.ID, nil
}

func title(message string) string {
	r := []rune(message)
	if len(r) > titleLength {
		r = r[:titleLength]
	}
	return string(r)
}

func buildPrompt(message, grounding string, c Complexity) (system, user string) {
	system, lead := complexSystemPrompt, "Answer comprehensively using SOYOSOYO SACCO documents:"
	if c.Simple {
		system, lead = simpleSystemPrompt, "Answer briefly using SOYOSOYO SACCO documents:"
	}

	if grounding == "" {
		return system, fmt.Sprintf("%s\n\nQUESTION: %s\nDOCUMENTS: none available, answer from general SACCO knowledge.", lead, message)
	}
	return system, fmt.Sprintf("%s\n\nQUESTION: %s\nDOCUMENTS: %s", lead, message, grounding)
}

// Conversation returns a conversation with its messages in order.
func (s *Service) Conversation(ctx context.Context, id string) (*models.Conversation, []models.Message, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return conv, msgs, nil
}

// Conversations lists conversations, most recently active first.
func (s *Service) Conversations(ctx context.Context) ([]models.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, s.config.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	return convs, nil
}
