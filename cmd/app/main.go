package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connect4_events/internal/config"
	"connect4_events/internal/db"
	"connect4_events/internal/domain"
	httpServer "connect4_events/internal/http"
	"connect4_events/internal/http/handlers"
	"connect4_events/internal/http/middleware"
	"connect4_events/internal/logger"
	"connect4_events/internal/service"
	"connect4_events/internal/transport"
	"connect4_events/internal/transport/pgnotify"
	"connect4_events/internal/transport/redisbus"
	"connect4_events/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret, cfg.TokenTTL)

	backend, pinger, cleanup := openBackend(cfg)
	defer cleanup()

	hub := ws.NewHub(backend, domain.Namespace)
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	hub.StartCleanup(ctx)

	r := gin.Default()
	r.Use(middleware.Metrics())

	// CORS for a frontend served from another origin
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer.RegisterRoutes(r, httpServer.RouteConfig{
		Hub:           hub,
		Backend:       pinger,
		BackendName:   cfg.Backend,
		Version:       version,
		AllowedOrigin: cfg.AllowedOrigin,
		PublicURL:     cfg.PublicURL,
		APIRateLimit:  cfg.APIRateLimit,
		APIRateWindow: cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("relay started", "port", cfg.AppPort, "backend", cfg.Backend, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

// openBackend builds the transport the relay fans out through. Redis, when
// configured, also backs the API rate limiter.
func openBackend(cfg *config.Config) (transport.Transport, handlers.Pinger, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Backend {
	case config.BackendRedis:
		rb, err := redisbus.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis backend unavailable", "error", err)
		}
		middleware.InitRedisRateLimiter(rb.Client())
		logger.Info("relay backend ready", "backend", "redis", "addr", cfg.RedisAddr)
		return rb, rb, func() { _ = rb.Close() }

	case config.BackendPostgres:
		pool := db.Connect(cfg.DatabaseURL, cfg.DBMaxConns)
		pg := pgnotify.New(pool)
		closeLimiter := rateLimiterRedis(cfg)
		logger.Info("relay backend ready", "backend", "postgres")
		return pg, pg, func() {
			closeLimiter()
			pool.Close()
		}

	default:
		bus := transport.NewBus()
		closeLimiter := rateLimiterRedis(cfg)
		logger.Info("relay backend ready", "backend", "memory")
		return bus, nil, func() {
			closeLimiter()
			_ = bus.Close()
		}
	}
}

// rateLimiterRedis connects the rate limiter to REDIS_ADDR when it is set.
func rateLimiterRedis(cfg *config.Config) func() {
	if cfg.RedisAddr == "" {
		return func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	middleware.InitRedisRateLimiter(client)
	return func() { _ = client.Close() }
}
