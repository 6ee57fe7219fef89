package conversations

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aidash-backend/login"
)

// Store is the read side the handlers need; the chat handler writes through
// the full Repository.
type Store interface {
	ListByUser(ctx context.Context, userID int) ([]Conversation, error)
	GetByID(ctx context.Context, id string) (*Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]Message, error)
}

type Handler struct {
	Store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{Store: store}
}

// RegisterRoutes mounts the conversation reads. The group must already be
// behind login.RequireAuth.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/conversations", h.List)
	r.GET("/conversation/history", h.History)
}

func (h *Handler) List(c *gin.Context) {
	ident := login.IdentityFrom(c)
	convs, err := h.Store.ListByUser(c.Request.Context(), ident.UserID)
	if err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("conversations: list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": convs})
}

func (h *Handler) History(c *gin.Context) {
	ident := login.IdentityFrom(c)
	conversationID := c.Query("conversation_id")
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}
	conv, err := h.Store.GetByID(c.Request.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("conversations: lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	if conv == nil || conv.UserID != ident.UserID {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	msgs, err := h.Store.Messages(c.Request.Context(), conversationID)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("conversations: history failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"conversation": conv,
		"messages":     msgs,
	}})
}
