package login

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aidash-backend/users"
)

const (
	// SessionCookie is the cookie carrier for browser clients. API clients
	// send the same token as a bearer header instead.
	SessionCookie = "session"

	identityKey = "identity"
)

// UserStore is the subset of the users repository the auth handlers need.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	GetByID(ctx context.Context, id int) (*users.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *users.User) error
}

type Handler struct {
	Users UserStore
}

func NewHandler(store UserStore) *Handler {
	return &Handler{Users: store}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.GET("/auth/session", h.Session)
	r.POST("/auth/logout", h.Logout)
}

type registerRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	exists, err := h.Users.EmailExists(c.Request.Context(), req.Email)
	if err != nil {
		log.Error().Err(err).Str("email", req.Email).Msg("register: email lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	hashed, err := users.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	u := &users.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  hashed,
	}
	if err := h.Users.Create(c.Request.Context(), u); err != nil {
		// Two registrations can pass the EmailExists check together; the
		// UNIQUE key decides and the loser gets the same conflict answer.
		if users.IsDuplicateEntry(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		log.Error().Err(err).Str("email", req.Email).Msg("register: insert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	log.Info().Int("user_id", u.ID).Str("email", u.Email).Msg("user registered")
	c.JSON(http.StatusCreated, gin.H{"user": userPayload(u)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	u, err := h.Users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		log.Error().Err(err).Str("email", req.Email).Msg("login: user lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	if u == nil || !u.CheckPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	dur := sessionDuration(req.Remember)
	token, exp, err := signToken(u.ID, u.Email, dur)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.SetCookie(SessionCookie, token, int(dur.Seconds()), "/", "", false, true)
	log.Info().Int("user_id", u.ID).Bool("remember", req.Remember).Msg("login ok")
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp,
		"user":       userPayload(u),
	})
}

// Session echoes the authenticated user, or 401 when the credential is
// missing or invalid.
func (h *Handler) Session(c *gin.Context) {
	ident := ResolveSession(c)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	u, err := h.Users.GetByID(c.Request.Context(), ident.UserID)
	if err != nil || u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userPayload(u)})
}

func (h *Handler) Logout(c *gin.Context) {
	token := extractToken(c)
	if token != "" {
		if claims, ok := parseToken(token); ok {
			blacklistToken(claims.ID, claims.ExpiresAt.Time)
		}
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// extractToken prefers the Authorization header, then the session cookie.
// Two carriers, one token format and one verifier.
func extractToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if token := strings.TrimPrefix(auth, "Bearer "); token != "" && token != auth {
		return token
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}

// ResolveSession extracts the authenticated identity from the request, or
// nil when there is none. It never fails the caller for a missing or
// malformed credential.
func ResolveSession(c *gin.Context) *Identity {
	token := extractToken(c)
	if token == "" {
		return nil
	}
	claims, ok := parseToken(token)
	if !ok {
		return nil
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil
	}
	return &Identity{UserID: userID, Email: claims.Email}
}

// Identify resolves the session once per request and stashes the identity,
// if any, into the gin context. It never aborts: deciding what an anonymous
// caller may do belongs to the authorization stage.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ident := ResolveSession(c); ident != nil {
			c.Set(identityKey, ident)
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 when no identity was resolved. Mount after
// Identify.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Identify, or nil.
func IdentityFrom(c *gin.Context) *Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	ident, _ := v.(*Identity)
	return ident
}

func userPayload(u *users.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"full_name":  u.FullName(),
		"email":      u.Email,
		"created_at": u.CreatedAt.Format(time.RFC3339),
		"updated_at": u.UpdatedAt.Format(time.RFC3339),
	}
}
