package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"connect4_events/internal/logger"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	AppPort       string
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string
	DBMaxConns    int32
	JWTSecret     string
	TokenTTL      time.Duration
	AllowedOrigin string
	PublicURL     string

	LogLevel string
	LogJSON  bool

	// API rate limits, per client IP
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads .env (if present) and the environment. Missing required
// values are fatal.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from getenv without touching the process.
func FromEnv(getenv func(string) string) (*Config, error) {
	jwtSecret := getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	backend := getenv("RELAY_BACKEND")
	if backend == "" {
		backend = BackendMemory
	}

	dbURL := getenv("DATABASE_URL")
	redisAddr := getenv("REDIS_ADDR")
	switch backend {
	case BackendMemory:
	case BackendRedis:
		if redisAddr == "" {
			return nil, errors.New("REDIS_ADDR is required for the redis backend")
		}
	case BackendPostgres:
		if dbURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return nil, fmt.Errorf("RELAY_BACKEND %q is not one of memory, redis, postgres", backend)
	}

	port := getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	publicURL := getenv("PUBLIC_URL")
	if publicURL == "" {
		publicURL = "http://localhost:" + port
	}

	logLevel := getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		AppPort:       port,
		Backend:       backend,
		RedisAddr:     redisAddr,
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       intOr(getenv("REDIS_DB"), 0),
		DatabaseURL:   dbURL,
		DBMaxConns:    int32(positiveOr(getenv("DB_MAX_CONNS"), 50)),
		JWTSecret:     jwtSecret,
		TokenTTL:      time.Duration(positiveOr(getenv("TOKEN_TTL_HOURS"), 24)) * time.Hour,
		AllowedOrigin: getenv("ALLOWED_ORIGIN"),
		PublicURL:     publicURL,
		LogLevel:      logLevel,
		LogJSON:       getenv("LOG_JSON") == "true",
		APIRateLimit:  positiveOr(getenv("API_RATE_LIMIT"), 30),
		APIRateWindow: time.Duration(positiveOr(getenv("API_RATE_WINDOW_SECONDS"), 60)) * time.Second,
	}, nil
}

func intOr(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func positiveOr(v string, def int) int {
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	return def
}
