package conversations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidash-backend/login"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeStore struct {
	convs map[string]*Conversation
	order []string
	msgs  map[string][]Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{convs: map[string]*Conversation{}, msgs: map[string][]Message{}}
}

func (f *fakeStore) add(conv *Conversation, msgs ...Message) {
	f.convs[conv.ID] = conv
	f.order = append(f.order, conv.ID)
	f.msgs[conv.ID] = msgs
}

func (f *fakeStore) ListByUser(ctx context.Context, userID int) ([]Conversation, error) {
	out := []Conversation{}
	// Newest first, mirroring the repository's ORDER BY created_at DESC.
	for i := len(f.order) - 1; i >= 0; i-- {
		conv := f.convs[f.order[i]]
		if conv.UserID != userID {
			continue
		}
		withMsgs := *conv
		withMsgs.Messages = f.msgs[conv.ID]
		out = append(out, withMsgs)
	}
	return out, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*Conversation, error) {
	return f.convs[id], nil
}

func (f *fakeStore) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	return f.msgs[conversationID], nil
}

func newRouter(store Store) *gin.Engine {
	h := NewHandler(store)
	r := gin.New()
	r.Use(login.Identify())
	authed := r.Group("/api", login.RequireAuth())
	h.RegisterRoutes(authed)
	return r
}

func get(t *testing.T, r *gin.Engine, path string, userID int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if userID > 0 {
		token, err := login.SignSession(userID, "u@example.com", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seed(store *fakeStore) {
	base := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	store.add(
		&Conversation{ID: "conv-a", UserID: 1, Title: "older", CreatedAt: base},
		Message{ID: 1, ConversationID: "conv-a", Role: "user", Content: "hi", CreatedAt: base},
		Message{ID: 2, ConversationID: "conv-a", Role: "assistant", Content: "hello", CreatedAt: base.Add(time.Second)},
	)
	store.add(&Conversation{ID: "conv-b", UserID: 1, Title: "newer", CreatedAt: base.Add(time.Hour)})
	store.add(&Conversation{ID: "conv-c", UserID: 2, Title: "other user", CreatedAt: base.Add(2 * time.Hour)})
}

func TestListUnauthenticated(t *testing.T) {
	r := newRouter(newFakeStore())
	w := get(t, r, "/api/conversations", 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListReturnsOwnConversationsNewestFirst(t *testing.T) {
	store := newFakeStore()
	seed(store)
	r := newRouter(store)

	w := get(t, r, "/api/conversations", 1)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []Conversation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "conv-b", resp.Data[0].ID)
	assert.Equal(t, "conv-a", resp.Data[1].ID)
	require.Len(t, resp.Data[1].Messages, 2)
	assert.Equal(t, "user", resp.Data[1].Messages[0].Role)
	assert.Equal(t, "assistant", resp.Data[1].Messages[1].Role)
}

func TestHistoryRequiresConversationID(t *testing.T) {
	r := newRouter(newFakeStore())
	w := get(t, r, "/api/conversation/history", 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryOrdered(t *testing.T) {
	store := newFakeStore()
	seed(store)
	r := newRouter(store)

	w := get(t, r, "/api/conversation/history?conversation_id=conv-a", 1)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Conversation Conversation `json:"conversation"`
			Messages     []Message    `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "conv-a", resp.Data.Conversation.ID)
	require.Len(t, resp.Data.Messages, 2)
	assert.True(t, resp.Data.Messages[0].CreatedAt.Before(resp.Data.Messages[1].CreatedAt))
}

func TestHistoryForeignConversationHidden(t *testing.T) {
	store := newFakeStore()
	seed(store)
	r := newRouter(store)

	w := get(t, r, "/api/conversation/history?conversation_id=conv-c", 1)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
