package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oakmont-tuition/omt-api/internal/models"
	"github.com/oakmont-tuition/omt-api/internal/repository"
)

// Audit writes an audit log row after the handler chain completes
// successfully. Failed requests are not recorded; the audit trail tracks what
// changed, not what was attempted.
func Audit(repo *repository.UserRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var actorID *string
		if v, ok := c.Get(ContextUserKey); ok {
			if claims, ok := v.(*models.JWTClaims); ok {
				actorID = &claims.UserID
			}
		}

		detail, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(started).Milliseconds(),
		})

		// Best effort: an audit write failure must not fail the request.
		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:    actorID,
			Action:    action,
			Resource:  resource,
			NewValues: detail,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
