package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderKey carries the request id in both directions.
const HeaderKey = "X-Request-ID"

const (
	contextKey = "request_id"

	// maxInboundLength caps caller-supplied ids before they reach logs.
	maxInboundLength = 128
)

// Middleware assigns a unique request ID to each incoming HTTP request. A
// caller-supplied X-Request-ID is kept when it is short enough.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderKey)
		if reqID == "" || len(reqID) > maxInboundLength {
			reqID = uuid.NewString()
		}

		c.Set(contextKey, reqID)
		c.Writer.Header().Set(HeaderKey, reqID)

		c.Next()
	}
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
