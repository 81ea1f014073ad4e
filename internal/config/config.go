package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Artifact storage backends
const (
	BackendLocal = "local"
	BackendAzure = "azure"
)

type Config struct {
	Host               string
	Port               string
	LogLevel           string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	MaxUploadFileSize  int64

	// Artifact storage
	OutputRoot            string
	ArtifactBackend       string
	AzureStorageAccount   string
	AzureStorageKey       string
	AzureStorageContainer string

	// Analyzer tuning
	ELAQuality             int
	CopyMoveBlockSize      int
	CopyMoveStride         int
	CopyMoveThreshold      float64
	CopyMoveMinBlockStdDev float64
	CopyMoveSkipOverlap    bool
	MaxWorkers             int

	// Upload rate limiting per client IP
	RateLimitRPS   float64
	RateLimitBurst int
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 90*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 60*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 50*1024*1024), // 50MB
		MaxUploadFileSize:  parseIntOrDefault("MAX_UPLOAD_FILE_SIZE", 25*1024*1024),  // 25MB

		OutputRoot:            getEnvOrDefault("OUTPUT_ROOT", "."),
		ArtifactBackend:       strings.ToLower(getEnvOrDefault("ARTIFACT_BACKEND", BackendLocal)),
		AzureStorageAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureStorageContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "forensics"),

		ELAQuality:             int(parseIntOrDefault("ELA_QUALITY", 90)),
		CopyMoveBlockSize:      int(parseIntOrDefault("COPY_MOVE_BLOCK_SIZE", 32)),
		CopyMoveStride:         int(parseIntOrDefault("COPY_MOVE_STRIDE", 16)),
		CopyMoveThreshold:      parseFloatOrDefault("COPY_MOVE_THRESHOLD", 0.9),
		CopyMoveMinBlockStdDev: parseFloatOrDefault("COPY_MOVE_MIN_BLOCK_STDDEV", 2.0),
		CopyMoveSkipOverlap:    parseBoolOrDefault("COPY_MOVE_SKIP_OVERLAPPING", false),
		MaxWorkers:             int(parseIntOrDefault("MAX_WORKERS", 0)),

		RateLimitRPS:   parseFloatOrDefault("RATE_LIMIT_RPS", 2),
		RateLimitBurst: int(parseIntOrDefault("RATE_LIMIT_BURST", 5)),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that would otherwise surface as analyzer failures
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 || c.MaxUploadFileSize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE and MAX_UPLOAD_FILE_SIZE must be > 0 (got %d, %d)",
			c.MaxRequestBodySize, c.MaxUploadFileSize)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s)",
			c.RequestTimeout, c.AnalysisTimeout)
	}
	if c.ELAQuality < 1 || c.ELAQuality > 100 {
		return fmt.Errorf("ELA_QUALITY must be within 1..100 (got %d)", c.ELAQuality)
	}
	if c.CopyMoveBlockSize < 8 || c.CopyMoveStride < 1 {
		return fmt.Errorf("COPY_MOVE_BLOCK_SIZE must be >= 8 and COPY_MOVE_STRIDE >= 1 (got %d, %d)",
			c.CopyMoveBlockSize, c.CopyMoveStride)
	}
	if c.CopyMoveThreshold <= 0 || c.CopyMoveThreshold > 1 {
		return fmt.Errorf("COPY_MOVE_THRESHOLD must be within (0, 1] (got %g)", c.CopyMoveThreshold)
	}
	if c.CopyMoveMinBlockStdDev < 0 {
		return fmt.Errorf("COPY_MOVE_MIN_BLOCK_STDDEV must be >= 0 (got %g)", c.CopyMoveMinBlockStdDev)
	}
	switch c.ArtifactBackend {
	case BackendLocal:
	case BackendAzure:
		if c.AzureStorageAccount == "" || c.AzureStorageKey == "" {
			return fmt.Errorf("ARTIFACT_BACKEND=azure requires AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY")
		}
	default:
		return fmt.Errorf("unsupported ARTIFACT_BACKEND: %q", c.ArtifactBackend)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
