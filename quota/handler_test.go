package quota

import (
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

func TestApiLimit(t *testing.T) {
	gate, usage := newTestGate(nil, 2)
	usage.counts[1] = 2

	r := gin.New()
	r.Use(login.Identify())
	r.GET("/api/api-limit", login.RequireAuth(), gate.ApiLimit)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/api-limit", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := login.SignSession(1, "u@example.com", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/api-limit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var ent Entitlement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ent))
	assert.False(t, ent.HasActiveSubscription)
	assert.Equal(t, 3, ent.RemainingFreeUses)
}
