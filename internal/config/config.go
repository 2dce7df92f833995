// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string

	// Remote store (Google Drive)
	DriveCredentialsFile string // service-account key file; takes precedence
	DriveClientID        string
	DriveClientSecret    string
	DriveRefreshToken    string
	DriveRootFolderID    string

	// Compression
	CompressThreshold int64         // files at or below this size are uploaded as-is
	PreviewBudget     int64         // target size the remote preview renders inline
	GhostscriptBin    string
	ToolTimeout       time.Duration // wall-clock limit per compression attempt
	MaxImageDim       int
	ImageQuality      int
	TempDir           string

	// Uploads
	MaxUploadSize int64
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr: envOr("METRICS_ADDR", ":9090"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "json"),
		DatabaseURL: envOr("DATABASE_URL", ""),

		DriveCredentialsFile: envOr("DRIVE_CREDENTIALS_FILE", ""),
		DriveClientID:        envOr("DRIVE_CLIENT_ID", ""),
		DriveClientSecret:    envOr("DRIVE_CLIENT_SECRET", ""),
		DriveRefreshToken:    envOr("DRIVE_REFRESH_TOKEN", ""),
		DriveRootFolderID:    envOr("DRIVE_ROOT_FOLDER_ID", ""),

		CompressThreshold: envInt64("COMPRESS_THRESHOLD", 25*1024*1024),
		PreviewBudget:     envInt64("PREVIEW_BUDGET", 100*1024*1024),
		GhostscriptBin:    envOr("GHOSTSCRIPT_BIN", "gs"),
		ToolTimeout:       envDuration("TOOL_TIMEOUT", 5*time.Minute),
		MaxImageDim:       envInt("MAX_IMAGE_DIMENSION", 4096),
		ImageQuality:      envInt("IMAGE_QUALITY", 80),
		TempDir:           envOr("TEMP_DIR", os.TempDir()),

		MaxUploadSize: envInt64("MAX_UPLOAD_SIZE", 500*1024*1024),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DriveRootFolderID == "" {
		return nil, fmt.Errorf("DRIVE_ROOT_FOLDER_ID is required")
	}
	if cfg.DriveCredentialsFile == "" && cfg.DriveRefreshToken == "" {
		return nil, fmt.Errorf("either DRIVE_CREDENTIALS_FILE or DRIVE_CLIENT_ID/DRIVE_CLIENT_SECRET/DRIVE_REFRESH_TOKEN is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
