package chat

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"aidash-backend/conversations"
	"aidash-backend/login"
	"aidash-backend/openai"
	"aidash-backend/quota"
)

const titleMaxLen = 80

// Completer abstracts the LLM client for easier mocking in unit tests.
type Completer interface {
	Complete(ctx context.Context, history []openai.Message, prompt string) (string, error)
}

// ConversationStore is the persistence the chat handler needs.
type ConversationStore interface {
	Create(ctx context.Context, id string, userID int, title string) (*conversations.Conversation, error)
	GetByID(ctx context.Context, id string) (*conversations.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]conversations.Message, error)
	AppendMessage(ctx context.Context, conversationID, role, content string) error
}

type Handler struct {
	AI    Completer
	Convs ConversationStore
	Gate  *quota.Gate
}

func NewHandler(ai Completer, convs ConversationStore, gate *quota.Gate) *Handler {
	return &Handler{AI: ai, Convs: convs, Gate: gate}
}

type messageRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

// Message handles POST /api/chat. The route is mounted behind the gate
// middleware, so an allowed request already carries its decision; quota is
// consumed only after the model call succeeds.
func (h *Handler) Message(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	ident := login.IdentityFrom(c)
	ctx := c.Request.Context()

	conv, history, err := h.loadOrCreateConversation(ctx, ident.UserID, req)
	if err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("chat: conversation load failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	if conv == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}

	reply, err := h.AI.Complete(ctx, history, req.Message)
	if err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Str("conversation_id", conv.ID).
			Msg("chat: completion failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}

	// Persistence failures after a successful completion are logged but do
	// not fail the response; the reply was already produced.
	if err := h.Convs.AppendMessage(ctx, conv.ID, openai.RoleUser, req.Message); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("chat: persist user message failed")
	}
	if err := h.Convs.AppendMessage(ctx, conv.ID, openai.RoleAssistant, reply); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("chat: persist reply failed")
	}

	if dec, ok := quota.DecisionFrom(c); ok {
		if err := h.Gate.Consume(ctx, ident, dec); err != nil {
			log.Error().Err(err).Int("user_id", ident.UserID).Msg("chat: usage increment failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"response":        reply,
		"conversation_id": conv.ID,
	}})
}

// loadOrCreateConversation resolves the target conversation and its prior
// messages. A nil conversation with nil error means not found / not owned.
func (h *Handler) loadOrCreateConversation(ctx context.Context, userID int, req messageRequest) (*conversations.Conversation, []openai.Message, error) {
	if req.ConversationID == "" {
		conv, err := h.Convs.Create(ctx, uuid.NewString(), userID, titleFrom(req.Message))
		if err != nil {
			return nil, nil, err
		}
		return conv, nil, nil
	}

	conv, err := h.Convs.GetByID(ctx, req.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil || conv.UserID != userID {
		return nil, nil, nil
	}
	stored, err := h.Convs.Messages(ctx, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	history := make([]openai.Message, 0, len(stored))
	for _, m := range stored {
		history = append(history, openai.Message{Role: m.Role, Content: m.Content})
	}
	return conv, history, nil
}

// titleFrom truncates on a rune boundary so multi-byte input never stores
// an invalid-UTF-8 title.
func titleFrom(message string) string {
	runes := []rune(message)
	if len(runes) <= titleMaxLen {
		return message
	}
	return string(runes[:titleMaxLen])
}
