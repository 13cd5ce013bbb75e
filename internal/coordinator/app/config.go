package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Servers []string // Ordered backend base URLs; failover walks them front to back

	ForwardTimeout time.Duration // Per-attempt forward timeout (default: 5s)
	ProbeTimeout   time.Duration // Per-backend health probe timeout (default: 2s)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8000)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	return Config{
		Servers: splitServers(getEnvOrDefault("COORD_SERVERS",
			"http://localhost:8080,http://localhost:8081,http://localhost:8082")),
		ForwardTimeout:      getEnvDurationOrDefault("COORD_FORWARD_TIMEOUT", 5*time.Second),
		ProbeTimeout:        getEnvDurationOrDefault("COORD_PROBE_TIMEOUT", 2*time.Second),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8000),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// splitServers parses the comma-separated backend list, trimming whitespace
// and dropping empty entries while preserving order.
func splitServers(raw string) []string {
	var servers []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			servers = append(servers, strings.TrimRight(trimmed, "/"))
		}
	}
	return servers
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
