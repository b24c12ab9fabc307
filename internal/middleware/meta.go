package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/putevi/briefing-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	processingKey   = "processing_time_ms"
)

// WithResponseMeta gives every request a meta map for the response envelope,
// seeded with the request id when one was assigned upstream.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
	}
}

// SetCacheHit records whether the payload came from Redis, in meta and as X-Cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if c == nil {
		return
	}
	meta(c)[cacheHitKey] = hit
	header := "MISS"
	if hit {
		header = "HIT"
	}
	c.Header("X-Cache", header)
}

// Processing stamps the time spent since start and returns the meta map for response.JSON.
func Processing(c *gin.Context, start time.Time) map[string]interface{} {
	m := meta(c)
	m[processingKey] = time.Since(start).Milliseconds()
	return m
}

func meta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	m := map[string]interface{}{}
	c.Set(responseMetaKey, m)
	return m
}
