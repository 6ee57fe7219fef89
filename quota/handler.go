package quota

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aidash-backend/login"
)

// ApiLimit reports the caller's entitlement state for the dashboard counter.
// Mount behind login.RequireAuth.
func (g *Gate) ApiLimit(c *gin.Context) {
	ident := login.IdentityFrom(c)
	ent, err := g.Checker.Check(c.Request.Context(), ident.UserID)
	if err != nil {
		log.Error().Err(err).Int("user_id", ident.UserID).Msg("api-limit: check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		return
	}
	c.JSON(http.StatusOK, ent)
}
