package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/mathcourse-portal/internal/config"
	"github.com/stemsi/mathcourse-portal/internal/handler"
	"github.com/stemsi/mathcourse-portal/internal/middleware"
	"github.com/stemsi/mathcourse-portal/internal/model"
	"github.com/stemsi/mathcourse-portal/internal/response"
	"github.com/stemsi/mathcourse-portal/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	RPC  *handler.RPCHandler
	Auth *handler.AuthHandler
	WS   *handler.WSHandler
}

type sessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*model.SessionInfo, error)
}

// Deps groups the shared collaborators used by route middlewares.
type Deps struct {
	APIKeys  *service.APIKeyService
	Sessions sessionValidator
	Limiter  *middleware.RateLimiter
	Metrics  *middleware.HTTPMetrics
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(deps Deps, handlers *Handlers, cfg *config.Config) *gin.Engine {
	apiKeys, sessions, limiter := deps.APIKeys, deps.Sessions, deps.Limiter

	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", middleware.HeaderAPIKey}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware(), deps.Metrics.Handler())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ─── 1. RPC Group (API key, Rate Limited) ──────────────────────────
	rpc := router.Group("/rest/v1/rpc")
	rpc.Use(limiter.Middleware(), middleware.NoStore(), middleware.Brotli())
	{
		rpc.POST("/get_admin_user",
			middleware.RequireAPIKey(apiKeys, service.RoleService),
			handlers.RPC.GetAdminUser,
		)
		rpc.POST("/create_admin_session",
			middleware.RequireAPIKey(apiKeys, service.RoleService),
			handlers.RPC.CreateAdminSession,
		)
		rpc.POST("/validate_admin_session",
			middleware.RequireAPIKey(apiKeys, service.RoleAnon),
			handlers.RPC.ValidateAdminSession,
		)
		rpc.POST("/destroy_admin_session",
			middleware.RequireAPIKey(apiKeys, service.RoleAnon),
			handlers.RPC.DestroyAdminSession,
		)
	}

	// ─── 2. Admin Group (Session Token) ────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(limiter.Middleware(), middleware.NoStore(), middleware.RequireAdminSession(sessions))
	{
		adminAPI.GET("/me", handlers.Auth.GetAdminProfile)
		adminAPI.POST("/logout", handlers.Auth.AdminLogout)
	}

	// ─── 3. WebSocket Group (Session Token via ?token=) ────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireAdminSession(sessions))
	{
		ws.GET("/admin/session/stream", handlers.WS.SessionStream)
	}

	return router
}
