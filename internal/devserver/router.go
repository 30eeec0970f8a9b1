package devserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/catrixlabs/catrix-client/internal/config"
	"github.com/catrixlabs/catrix-client/internal/response"
)

// NewRouter configures the dev API routes.
func NewRouter(cfg *config.Config, auth *Auth, h *Handler) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request IDs on every response for log correlation.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// ─── Auth (public) ─────────────────────────────────────────────────
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/verify", auth.RequireAuth(), h.Verify)
	}

	// ─── Authenticated API ─────────────────────────────────────────────
	api := router.Group("/api")
	api.Use(auth.RequireAuth())
	{
		api.GET("/tests", h.ListTests)
		api.GET("/tests/:test_id", h.GetTest)
		api.POST("/tests/attempt/start/:test_id", h.StartAttempt)
		api.POST("/tests/attempt/:attempt_id/answer", h.SaveAnswer)
		api.POST("/tests/attempt/:attempt_id/submit", h.SubmitAttempt)
		api.GET("/tests/attempt/:attempt_id", h.GetAttempt)
		api.GET("/analytics", h.Analytics)
	}

	// ─── WebSocket ─────────────────────────────────────────────────────
	ws := router.Group("/ws")
	ws.Use(auth.RequireWSAuth())
	{
		ws.GET("/proctor", h.ProctorStream)
	}

	return router
}
