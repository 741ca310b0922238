// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// EncryptionKey is the 32-byte AES-256-GCM key protecting webhook
	// secrets at rest.
	EncryptionKey []byte

	// Delivery settings
	DeliveryTimeout time.Duration // hard per-attempt HTTP timeout
	MaxConcurrency  int           // fan-out bound per event
	UserAgent       string

	// Retry settings
	MaxRetries     int           // total attempts per webhook per event
	RetryBaseDelay time.Duration // backoff base, doubled per attempt
	RetryInterval  time.Duration // retry ticker period
	RetryBatch     int           // max due items promoted per tick

	// CORS
	CORSOrigins []string

	// Rate limiting for the registration API
	RateLimit       int
	RateLimitWindow time.Duration

	// Ledger retention
	CleanupEnabled  bool
	CleanupMaxAge   time.Duration // max age of delivery records to keep
	CleanupInterval time.Duration

	// Object storage for ledger archival (S3-compatible, optional)
	ArchiveEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string

	// Idle shutdown (scale-to-zero deployments; 0 = disabled)
	IdleTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:hookline.db?_journal=WAL&_timeout=5000"),

		DeliveryTimeout: getEnvDuration("DELIVERY_TIMEOUT", 30*time.Second),
		MaxConcurrency:  getEnvInt("DELIVERY_MAX_CONCURRENCY", 8),
		UserAgent:       getEnv("DELIVERY_USER_AGENT", "Hookline-Webhook/1.0"),

		MaxRetries:     getEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", 5*time.Second),
		RetryInterval:  getEnvDuration("RETRY_INTERVAL", 60*time.Second),
		RetryBatch:     getEnvInt("RETRY_BATCH", 50),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		RateLimit:       getEnvInt("RATE_LIMIT", 100),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		CleanupEnabled:  getEnvBool("CLEANUP_ENABLED", true),
		CleanupMaxAge:   getEnvDuration("CLEANUP_MAX_AGE", 90*24*time.Hour),
		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),

		// S3-compatible storage uses the standard AWS env vars
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),

		IdleTimeout: getEnvDuration("IDLE_TIMEOUT", 0),
	}

	// Archive old ledger rows only when a bucket is configured
	cfg.ArchiveEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("DELIVERY_MAX_CONCURRENCY must be at least 1")
	}

	// Set up encryption key (derive from a master secret if not explicit)
	encKeyStr := getEnv("ENCRYPTION_KEY", "")
	if encKeyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(encKeyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be a base64-encoded 32-byte key")
		}
		cfg.EncryptionKey = decoded
	} else {
		master := getEnv("MASTER_SECRET", "")
		if master == "" {
			// Ephemeral key: secrets written in this run cannot be
			// decrypted after a restart. Fine for dev, logged at startup.
			master = generateRandomSecret(64)
		}
		cfg.EncryptionKey = deriveEncryptionKey(master)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "hookline-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveEncryptionKey creates a 32-byte AES-256 key from a secret string
// using HKDF-SHA256. Appropriate for high-entropy secrets; not a password
// KDF.
func deriveEncryptionKey(secret string) []byte {
	salt := []byte("hookline-encryption-key-v1")
	info := []byte("aes-256-gcm-encryption")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
