package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appctx "metaquery/internal/core/context"
)

const HeaderRequestID = "X-Request-ID"

// Trace middleware tags the request context with a request ID, taken from
// the X-Request-ID header or generated. Query scopes started while serving
// the request inherit it, so every query log line carries it.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := appctx.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}
