package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/oakmont-tuition/omt-api/internal/middleware"
	"github.com/oakmont-tuition/omt-api/internal/models"
)

// claimsFromContext returns the JWT claims the auth middleware stored on the
// request, or nil on unauthenticated routes.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	if claims, ok := v.(*models.JWTClaims); ok {
		return claims
	}
	return nil
}
