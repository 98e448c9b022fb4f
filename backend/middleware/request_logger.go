package middleware

import (
	"log/slog"
	"time"

	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RequestLogger logs incoming requests and their responses
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		// The request context carries request and user ids set by earlier middleware.
		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Log(c.Request.Context(), slog.LevelError, "request completed", attrs...)
		case status >= 400:
			log.Log(c.Request.Context(), slog.LevelWarn, "request completed", attrs...)
		default:
			log.Log(c.Request.Context(), slog.LevelInfo, "request completed", attrs...)
		}
	}
}
