package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-mock/internal/config"
	"github.com/stemsi/exstem-mock/internal/handler"
	"github.com/stemsi/exstem-mock/internal/middleware"
	"github.com/stemsi/exstem-mock/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Program *handler.ProgramHandler
	Session *handler.SessionHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// programsMaxAge is the client cache lifetime of the static program catalogue.
const programsMaxAge = 300

// SetupRouter configures all Gin route groups with appropriate middlewares.
// limiter may be nil to disable rate limiting of session mutations.
func SetupRouter(
	handlers *Handlers,
	limiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID and access log on every response.
	router.Use(response.RequestIDMiddleware(log))

	router.Use(middleware.Compress(middleware.DefaultCompressionConfig()))

	router.GET("/health", middleware.NoStore(), handlers.System.Health)

	api := router.Group("/api/v1")

	// ─── 1. Program catalogue ──────────────────────────────────────────
	api.GET("/programs", middleware.CacheControl(programsMaxAge), handlers.Program.List)

	// ─── 2. Live sessions ──────────────────────────────────────────────
	sessions := api.Group("/sessions")
	sessions.Use(middleware.NoStore())
	mutations := []gin.HandlerFunc{}
	if limiter != nil {
		mutations = append(mutations, limiter.Middleware())
	}
	{
		sessions.POST("", append(mutations, handlers.Session.Start)...)
		sessions.GET("/:id", handlers.Session.Get)
		sessions.POST("/:id/answer", append(mutations, handlers.Session.Answer)...)
		sessions.POST("/:id/flag", append(mutations, handlers.Session.Flag)...)
		sessions.POST("/:id/navigate", append(mutations, handlers.Session.Navigate)...)
		sessions.POST("/:id/submit", append(mutations, handlers.Session.Submit)...)
		sessions.POST("/:id/save", append(mutations, handlers.Session.Save)...)
		sessions.DELETE("/:id", append(mutations, handlers.Session.Abandon)...)
	}

	// ─── 3. Attempt history ────────────────────────────────────────────
	attempts := api.Group("/attempts")
	attempts.Use(middleware.NoStore())
	{
		attempts.GET("", handlers.Attempt.List)
		attempts.GET("/stats", handlers.Attempt.Stats)
		attempts.GET("/:id", handlers.Attempt.Get)
		attempts.GET("/:id/review", handlers.Attempt.Review)
		attempts.DELETE("/:id", handlers.Attempt.Delete)
	}

	// ─── 4. System ─────────────────────────────────────────────────────
	api.GET("/system/metrics", handlers.System.MetricsSSE)

	// ─── 5. WebSocket ──────────────────────────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/sessions/:id/stream", handlers.WS.SessionStream)
	}

	return router
}
