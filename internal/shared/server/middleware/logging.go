package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/shared/telemetry"
)

const (
	// SessionIDKey is the context key handlers set once a session is resolved.
	SessionIDKey = "sessionId"
	// OperationKey names the session operation a request performed.
	OperationKey = "operation"
)

// Logging emits one structured line per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.Request.Method, "OPTIONS") {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		sessionID := c.GetString(SessionIDKey)
		if sessionID == "" {
			sessionID = c.Param("id")
		}
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"route":       c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"session_id":  sessionID,
			"client_ip":   c.ClientIP(),
		}
		if op := c.GetString(OperationKey); op != "" {
			fields["operation"] = op
		}
		telemetry.Info("request.complete", fields)
	}
}
