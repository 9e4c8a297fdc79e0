package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	BackendBaseURL  string
	GatewayTimeout  time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	SnapshotTTL   time.Duration

	KafkaBrokers     []string
	OrderEventsTopic string

	JWTSecret   string
	CORSOrigins []string

	// AllowUnverifiedTokens lets the service start without JWT_SECRET. Local development only.
	AllowUnverifiedTokens bool

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. A .env file in the working directory
// is applied first when present; variables already set win.
func Load() *Config {
	_ = godotenv.Load()
	return loadConfig()
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		BackendBaseURL:        getEnv("BACKEND_BASE_URL", "http://localhost:5000"),
		GatewayTimeout:        getDuration("GATEWAY_TIMEOUT", 10*time.Second),
		RequestTimeout:        getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:       getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RedisAddr:             getEnv("REDIS_ADDR", ""),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		SnapshotTTL:           getDuration("SNAPSHOT_TTL", 30*time.Minute),
		KafkaBrokers:          getList("KAFKA_BROKERS"),
		OrderEventsTopic:      getEnv("ORDER_EVENTS_TOPIC", "storefront-orders"),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		AllowUnverifiedTokens: getBool("ALLOW_UNVERIFIED_TOKENS", false),
		CORSOrigins:           getListDefault("CORS_ORIGINS", []string{"*"}),
		RateLimitRPS:          getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:        getInt("RATE_LIMIT_BURST", 20),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getList(key string) []string {
	return getListDefault(key, nil)
}

func getListDefault(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
