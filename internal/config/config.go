package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	SessionsRedis = "redis"
)

type Config struct {
	Env  string
	Port int

	DBURL        string
	Store        string // memory|postgres
	SessionStore string // memory|redis

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret        string
	SessionTTL       time.Duration
	OperationTimeout time.Duration
	SimulatedLatency time.Duration
	LoginRateLimit   int

	TracingEnabled   bool
	OTELEndpoint     string
	TraceSampleRatio float64
	CORSOrigins      []string

	SeedDemo      bool
	AdminEmail    string
	AdminPassword string
	AdminName     string

	SweepSchedule   string
	BacklogSchedule string
	// EmbedHousekeeping runs the scheduler inside the API process. Memory
	// session stores need it; shared stores can use cmd/worker instead.
	EmbedHousekeeping bool
	WorkerPort        int
}

// Load reads the environment, picking up a .env file first when one exists.
// Variables already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env", "err", err)
	}

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		DBURL:        getEnv("DATABASE_URL", buildDBURL()),
		Store:        getEnv("STORE", StoreMemory),
		SessionStore: getEnv("SESSION_STORE", StoreMemory),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-me"),
		SessionTTL:       time.Duration(getEnvInt("SESSION_TTL_MINUTES", 720)) * time.Minute,
		OperationTimeout: getEnvDuration("OPERATION_TIMEOUT", 30*time.Second),
		SimulatedLatency: getEnvDuration("SIMULATED_LATENCY", 0),
		LoginRateLimit:   getEnvInt("LOGIN_RATE_LIMIT", 10),

		TracingEnabled:   getEnvBool("TRACING_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		TraceSampleRatio: getEnvFloat("TRACE_SAMPLE_RATIO", 1),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),

		SeedDemo:      getEnvBool("SEED_DEMO", true),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		SweepSchedule:   getEnv("SWEEP_SCHEDULE", "@every 5m"),
		BacklogSchedule: getEnv("BACKLOG_SCHEDULE", "@every 1m"),

		EmbedHousekeeping: getEnvBool("HOUSEKEEPING_EMBEDDED", true),
		WorkerPort:        getEnvInt("WORKER_PORT", 8081),
	}
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "eduloan")
	pass := getEnv("DB_PASSWORD", "eduloan")
	name := getEnv("DB_NAME", "eduloan")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
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
			slog.Warn("invalid integer in env, using default", "key", key, "value", v)
			return fallback
		}
		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float in env, using default", "key", key, "value", v)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid bool in env, using default", "key", key, "value", v)
			return fallback
		}
		return b
	}
	return fallback
}

// accepts Go durations ("500ms", "30s") or a bare number of milliseconds
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	slog.Warn("invalid duration in env, using default", "key", key, "value", v)
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
