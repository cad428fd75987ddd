package infra

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	LogLevel    string
	Port        string
	DatabaseURL string

	FalAPIKey         string
	FalQueueBaseURL   string
	FalStorageBaseURL string

	StorageBackend       string
	StoragePath          string
	StorageBaseURL       string
	StorageSigningSecret string
	S3Bucket             string
	S3Region             string
	S3Endpoint           string
	S3AccessKeyID        string
	S3SecretAccessKey    string
	S3UsePathStyle       bool
	SignedURLTTL         time.Duration
	MirrorOutputs        bool
	MirrorHostAllowlist  []string
	RedisURL             string

	GenerationPollInterval time.Duration
	GenerationTimeout      time.Duration
	ModelCatalogPath       string
	ReconcileSchedule      string
	ReconcileGrace         time.Duration

	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),

		FalAPIKey:         strings.TrimSpace(os.Getenv("FAL_KEY")),
		FalQueueBaseURL:   getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),
		FalStorageBaseURL: getEnv("FAL_STORAGE_URL", "https://rest.alpha.fal.ai"),

		StorageBackend:       strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		StoragePath:          getEnv("STORAGE_PATH", "./data/storage"),
		StorageBaseURL:       getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"),
		StorageSigningSecret: os.Getenv("STORAGE_SIGNING_SECRET"),
		S3Bucket:             os.Getenv("S3_BUCKET"),
		S3Region:             getEnv("S3_REGION", "auto"),
		S3Endpoint:           os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:        os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:    os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3UsePathStyle:       getEnvBool("S3_USE_PATH_STYLE", false),
		SignedURLTTL:         time.Second * time.Duration(getEnvInt("SIGNED_URL_TTL_SECONDS", 3600)),
		MirrorOutputs:        getEnvBool("MIRROR_OUTPUTS", false),
		RedisURL:             os.Getenv("REDIS_URL"),

		GenerationPollInterval: time.Millisecond * time.Duration(getEnvInt("GENERATION_POLL_INTERVAL_MS", 2000)),
		GenerationTimeout:      time.Millisecond * time.Duration(getEnvInt("GENERATION_TIMEOUT_MS", 600000)),
		ModelCatalogPath:       os.Getenv("MODEL_CATALOG_PATH"),
		ReconcileSchedule:      getEnv("RECONCILE_SCHEDULE", "@every 1m"),
		ReconcileGrace:         time.Second * time.Duration(getEnvInt("RECONCILE_GRACE_SECONDS", 120)),

		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 660)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
	cfg.MirrorHostAllowlist = buildMirrorAllowlist(cfg.StorageBaseURL, os.Getenv("MIRROR_HOST_ALLOWLIST"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	switch cfg.StorageBackend {
	case "local":
		if cfg.StorageSigningSecret == "" {
			return nil, fmt.Errorf("STORAGE_SIGNING_SECRET is required for local storage")
		}
	case "s3":
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", cfg.StorageBackend)
	}
	if cfg.SignedURLTTL <= 0 {
		return nil, fmt.Errorf("SIGNED_URL_TTL_SECONDS must be positive")
	}

	return cfg, nil
}

// buildMirrorAllowlist merges the provider CDN hosts, the storage host and
// any explicitly configured hosts into a sorted, de-duplicated list.
func buildMirrorAllowlist(storageBaseURL, extra string) []string {
	seen := map[string]bool{"fal.media": true}
	if u, err := url.Parse(storageBaseURL); err == nil && u.Hostname() != "" {
		seen[strings.ToLower(u.Hostname())] = true
	}
	for _, host := range splitList(extra) {
		seen[strings.ToLower(host)] = true
	}
	out := make([]string, 0, len(seen))
	for host := range seen {
		out = append(out, host)
	}
	sort.Strings(out)
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
