package http

import (
	"time"

	"connect4_events/internal/http/handlers"
	"connect4_events/internal/http/middleware"
	"connect4_events/internal/ws"

	"github.com/gin-gonic/gin"
)

type RouteConfig struct {
	Hub           *ws.Hub
	Backend       handlers.Pinger
	BackendName   string
	Version       string
	AllowedOrigin string
	PublicURL     string
	APIRateLimit  int
	APIRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, cfg RouteConfig) {
	h := handlers.NewHandler(cfg.Hub, cfg.AllowedOrigin, cfg.PublicURL)
	healthHandler := handlers.NewHealthHandler(cfg.Backend, cfg.BackendName, cfg.Hub, cfg.Version)

	apiRateLimit := cfg.APIRateLimit
	if apiRateLimit <= 0 {
		apiRateLimit = 30
	}
	apiRateWindow := cfg.APIRateWindow
	if apiRateWindow <= 0 {
		apiRateWindow = time.Minute
	}

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(apiRateLimit, apiRateWindow))
	{
		v1.POST("/auth", h.Auth)
		v1.POST("/games", h.CreateGame)
		v1.GET("/games/:code", h.GetGame)
	}

	// Relay websocket; the token from /api/v1/auth goes in ?token=
	r.GET("/ws", h.WS())
}
