package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is the signing secret used when JWT_SECRET is unset. It is
// refused in prod.
const DevJWTSecret = "dev-secret-change-me"

var ErrDevSecretInProd = errors.New("JWT_SECRET must be set to a non-default value when APP_ENV=prod")

type Config struct {
	Env   string
	Port  int
	DBURL string

	// "postgres" or "memory"
	StoreDriver string
	AutoMigrate bool

	JWTSecret        string
	JWTExpireMinutes int
	CookieName       string
	BcryptCost       int

	ModelURL                string
	ModelTimeoutSeconds     int
	ModelBreakerFailures    int
	ModelBreakerCooldownSec int
	TracesCacheTTLSeconds   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitRequests      int
	RateLimitWindowSeconds int

	OTELEndpoint    string
	OTELSampleRatio float64

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	RequireAuth        bool

	AdminEmail    string
	AdminPassword string
	AdminName     string
}

func Load() Config {
	// a missing .env is the normal case outside local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Default().Warn("could not load .env", "err", err)
	}

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnvInt("PORT", 5001),
		DBURL:       buildDBURL(),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		JWTSecret:        getEnv("JWT_SECRET", DevJWTSecret),
		JWTExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 60*24*30),
		CookieName:       getEnv("COOKIE_NAME", "jwt"),
		BcryptCost:       getEnvInt("BCRYPT_COST", 10),

		ModelURL:                strings.TrimRight(getEnv("MODEL_URL", "http://localhost:8000"), "/"),
		ModelTimeoutSeconds:     getEnvInt("MODEL_TIMEOUT_SECONDS", 60),
		ModelBreakerFailures:    getEnvInt("MODEL_BREAKER_FAILURES", 5),
		ModelBreakerCooldownSec: getEnvInt("MODEL_BREAKER_COOLDOWN_SECONDS", 15),
		TracesCacheTTLSeconds:   getEnvInt("TRACES_CACHE_TTL_SECONDS", 5),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitRequests:      getEnvInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindowSeconds: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),

		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		RequireAuth:        getEnvBool("REQUIRE_AUTH", false),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),
	}
}

// Validate rejects settings the API must not start with.
func (c Config) Validate() error {
	if c.Env == "prod" && (c.JWTSecret == "" || c.JWTSecret == DevJWTSecret) {
		return ErrDevSecretInProd
	}
	return nil
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTExpireMinutes) * time.Minute
}

func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}

func (c Config) ModelBreakerCooldown() time.Duration {
	return time.Duration(c.ModelBreakerCooldownSec) * time.Second
}

func (c Config) TracesCacheTTL() time.Duration {
	return time.Duration(c.TracesCacheTTLSeconds) * time.Second
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "contextbridge")
	pass := getEnv("DB_PASSWORD", "contextbridge")
	name := getEnv("DB_NAME", "contextbridge")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds a store call made on behalf of a request.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			slog.Default().Warn("invalid integer env var, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Default().Warn("invalid float env var, using default", "key", key, "value", v)
			return fallback
		}
		return f
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Default().Warn("invalid boolean env var, using default", "key", key, "value", v)
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
