// Package requestid tags each request with an ID so log lines and error
// responses can be correlated across services.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerKey  = "X-Request-ID"
	contextKey = "request_id"
)

// Middleware attaches a request ID to the gin context and echoes it on the
// response. An ID supplied by the caller is honoured so IDs survive proxy hops.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerKey)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Header(headerKey, reqID)

		c.Next()
	}
}

// Value returns the request ID stored on the context, or "" when the
// middleware did not run.
func Value(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
