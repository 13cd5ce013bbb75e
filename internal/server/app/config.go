package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer string // Issuer name embedded in otpauth provisioning URIs

	StoreDriver  string // Store driver (memory, sqlite) (default: memory)
	DatabaseFile string // Path to SQLite database file (default: ./vaultgate.db)

	PepperFile     string // Path to password-hash pepper file (default: ./pepper)
	PayloadKeyFile string // Path to payload encryption key file (default: ./payload.key)

	CACertFile    string // Path to the trust anchor PEM for client certificates
	TLSCertFile   string // Optional: server TLS certificate; with TLSKeyFile enables TLS listen
	TLSKeyFile    string // Optional: server TLS private key
	CertParseOnly bool   // Dev only: accept any parseable certificate without chain verification

	SeedUsername string // Optional: account provisioned at startup if absent
	SeedPassword string // Password for the seed account

	SessionTTL           time.Duration // Session token lifetime (default: 1h)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 5m)
}

func LoadConfig() Config {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	return Config{
		Issuer:               getEnvOrDefault("VAULTGATE_ISSUER", "vaultgate"),
		StoreDriver:          getEnvOrDefault("STORE_DRIVER", "memory"),
		DatabaseFile:         getEnvOrDefault("DATABASE_FILE", "vaultgate.db"),
		PepperFile:           getEnvOrDefault("PEPPER_FILE", "pepper"),
		PayloadKeyFile:       getEnvOrDefault("PAYLOAD_KEY_FILE", "payload.key"),
		CACertFile:           getEnvOrDefault("CA_CERT_FILE", "certs/ca.crt"),
		TLSCertFile:          os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:           os.Getenv("TLS_KEY_FILE"),
		CertParseOnly:        getEnvBoolOrDefault("CERT_PARSE_ONLY", false),
		SeedUsername:         os.Getenv("SEED_USERNAME"),
		SeedPassword:         os.Getenv("SEED_PASSWORD"),
		SessionTTL:           getEnvDurationOrDefault("SESSION_TTL", 1*time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 5*time.Minute),
	}
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
