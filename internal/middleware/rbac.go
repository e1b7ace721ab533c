package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/oakmont-tuition/omt-api/internal/models"
	appErrors "github.com/oakmont-tuition/omt-api/pkg/errors"
	"github.com/oakmont-tuition/omt-api/pkg/response"
)

// RBAC gates a route on the caller's role. The sentinel "SELF" additionally
// allows a caller whose user ID matches the :id path parameter, so students
// can read their own records without staff roles.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		roles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserKey)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := v.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowSelf && c.Param("id") != "" && c.Param("id") == claims.UserID {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles gates a route on a typed role list.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
