// Package config holds deployment configuration, read from the
// environment with an optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr   string
	DataDir      string
	APIToken     string
	ModelVersion string
	PollInterval time.Duration
	PollDeadline time.Duration
	FFmpegPath   string

	BundleBackend  string // "local" or "minio"
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

// FromEnv builds a Config from environment variables with defaults. The
// API token and model version deliberately have no defaults; their absence
// is detected at request time and reported as a configuration error.
func FromEnv() Config {
	return Config{
		ListenAddr:     getenv("STEMSPLIT_LISTEN_ADDR", ":8080"),
		DataDir:        getenv("STEMSPLIT_DATA_DIR", "./data"),
		APIToken:       getenv("STEMSPLIT_API_TOKEN", ""),
		ModelVersion:   getenv("STEMSPLIT_MODEL_VERSION", ""),
		PollInterval:   time.Duration(getenvInt("STEMSPLIT_POLL_INTERVAL_SECONDS", 3)) * time.Second,
		PollDeadline:   time.Duration(getenvInt("STEMSPLIT_POLL_DEADLINE_SECONDS", 120)) * time.Second,
		FFmpegPath:     getenv("STEMSPLIT_FFMPEG_PATH", "ffmpeg"),
		BundleBackend:  getenv("STEMSPLIT_BUNDLE_BACKEND", "local"),
		MinIOEndpoint:  getenv("STEMSPLIT_MINIO_ENDPOINT", ""),
		MinIOAccessKey: getenv("STEMSPLIT_MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getenv("STEMSPLIT_MINIO_SECRET_KEY", ""),
		MinIOBucket:    getenv("STEMSPLIT_MINIO_BUCKET", "stemsplit-bundles"),
		MinIOUseSSL:    getenvBool("STEMSPLIT_MINIO_USE_SSL", false),
	}
}

// fileConfig is the YAML overlay shape. Secrets stay in the environment.
type fileConfig struct {
	ListenAddr          string `yaml:"listen_addr"`
	DataDir             string `yaml:"data_dir"`
	ModelVersion        string `yaml:"model_version"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	PollDeadlineSeconds int    `yaml:"poll_deadline_seconds"`
	FFmpegPath          string `yaml:"ffmpeg_path"`
	BundleBackend       string `yaml:"bundle_backend"`
	MinIOEndpoint       string `yaml:"minio_endpoint"`
	MinIOBucket         string `yaml:"minio_bucket"`
}

// LoadFile applies a YAML config file over cfg. Unset fields in the file
// leave the existing values untouched.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.ModelVersion != "" {
		cfg.ModelVersion = fc.ModelVersion
	}
	if fc.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(fc.PollIntervalSeconds) * time.Second
	}
	if fc.PollDeadlineSeconds > 0 {
		cfg.PollDeadline = time.Duration(fc.PollDeadlineSeconds) * time.Second
	}
	if fc.FFmpegPath != "" {
		cfg.FFmpegPath = fc.FFmpegPath
	}
	if fc.BundleBackend != "" {
		cfg.BundleBackend = fc.BundleBackend
	}
	if fc.MinIOEndpoint != "" {
		cfg.MinIOEndpoint = fc.MinIOEndpoint
	}
	if fc.MinIOBucket != "" {
		cfg.MinIOBucket = fc.MinIOBucket
	}

	return cfg.Validate()
}

// Validate checks that the config values are usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.PollDeadline <= 0 {
		return fmt.Errorf("poll deadline must be positive, got %s", c.PollDeadline)
	}
	switch c.BundleBackend {
	case "local", "minio":
	default:
		return fmt.Errorf("unknown bundle backend %q", c.BundleBackend)
	}
	if c.BundleBackend == "minio" && c.MinIOEndpoint == "" {
		return fmt.Errorf("minio endpoint is required when bundle backend is minio")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}
