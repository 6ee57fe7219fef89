package profile

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aidash-backend/login"
	"aidash-backend/users"
)

type Handler struct {
	Users *users.Repository
}

func NewHandler(repo *users.Repository) *Handler {
	return &Handler{Users: repo}
}

// RegisterRoutes mounts the profile endpoints; the group must be behind
// login.RequireAuth.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/profile", h.Get)
	r.PUT("/profile", h.Update)
	r.PUT("/profile/password", h.UpdatePassword)
}

func (h *Handler) Get(c *gin.Context) {
	ident := login.IdentityFrom(c)
	u, err := h.Users.GetByID(c.Request.Context(), ident.UserID)
	if err != nil || u == nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("profile: lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": u})
}

type updateRequest struct {
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
}

func (h *Handler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ident := login.IdentityFrom(c)
	if err := h.Users.UpdateProfile(c.Request.Context(), ident.UserID, req.FirstName, req.LastName); err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("profile: update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

func (h *Handler) UpdatePassword(c *gin.Context) {
	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	ident := login.IdentityFrom(c)
	u, err := h.Users.GetByID(c.Request.Context(), ident.UserID)
	if err != nil || u == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	if !u.CheckPassword(req.CurrentPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	hashed, err := users.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	if err := h.Users.UpdatePassword(c.Request.Context(), ident.UserID, hashed); err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("profile: password update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
