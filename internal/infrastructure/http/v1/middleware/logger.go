package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appctx "metaquery/internal/core/context"
	"metaquery/pkg/logger"
)

// Logger logs one line per request with its status, latency and the store
// calls it made. Server errors are logged at warn level.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		stats := &appctx.RequestStats{}
		c.Request = c.Request.WithContext(appctx.WithRequestStats(c.Request.Context(), stats))

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"query", c.Request.URL.RawQuery,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"queries", stats.Queries(),
			"query_ms", stats.Elapsed().Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, "error", errs.String())
		}

		l := log.WithContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			l.Warnw("http request", fields...)
			return
		}
		l.Infow("http request", fields...)
	}
}
