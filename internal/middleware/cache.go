package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta seeds a metadata map on the request context and records the
// handler processing time once the chain completes. Handlers add further
// entries (cache hits, counts) via the helpers below.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})

		c.Next()

		meta := ensureMeta(c)
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(started).Milliseconds()
		}
	}
}

// SetCacheHit marks whether the current response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// ExtractMeta returns the metadata map for the current request, or nil when
// WithResponseMeta is not installed.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}
