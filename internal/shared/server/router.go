package server

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-agent/internal/sessions"
	"resume-agent/internal/shared/config"
	"resume-agent/internal/shared/metrics"
	"resume-agent/internal/shared/server/middleware"
	"resume-agent/internal/shared/server/respond"
)

// RateLimitGroupModel covers routes that call the model gateway.
const RateLimitGroupModel = "MODEL"

// RouterDeps carries what the router needs to register routes.
type RouterDeps struct {
	Config   config.Config
	Sessions *sessions.Handler
	DB       *sql.DB
	Limiter  *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigins),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				RateLimitGroupModel: {Rate: 0.5, Burst: 10},
			},
			GroupFor: groupFor,
			KeyFor:   func(c *gin.Context) string { return c.Param("id") },
			Limiter:  deps.Limiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.DB))
	if deps.Sessions != nil {
		deps.Sessions.RegisterRoutes(api)
	}

	return r
}

func groupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return ""
	}
	route := c.FullPath()
	for _, suffix := range []string{"/resume", "/chat", "/regenerate"} {
		if strings.HasPrefix(route, "/api/v1/sessions/") && strings.HasSuffix(route, suffix) {
			return RateLimitGroupModel
		}
	}
	return ""
}

func healthHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"ok": true, "database": "disabled"}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				respond.JSON(c, http.StatusServiceUnavailable, gin.H{"ok": false, "database": "unavailable"})
				return
			}
			body["database"] = "ok"
		}
		respond.OK(c, body)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
