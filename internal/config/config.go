// Package config provides configuration management for Keepsake.
// It loads settings from environment variables with the KEEPSAKE_ prefix
// and provides sensible defaults for all configuration options. An optional
// YAML file supplies base values which environment variables override.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Keepsake application.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Backend     BackendConfig     `yaml:"backend"`
	Slideshow   SlideshowConfig   `yaml:"slideshow"`
	Upload      UploadConfig      `yaml:"upload"`
	ImageCheck  ImageCheckConfig  `yaml:"image_check"`
	Anniversary AnniversaryConfig `yaml:"anniversary"`
	Security    SecurityConfig    `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6464)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// BackendConfig selects and configures the record/object storage backend.
type BackendConfig struct {
	// Engine is the storage backend: "supabase" or "local" (default: local).
	Engine string `yaml:"engine"`

	// SupabaseURL and SupabaseKey identify the Supabase project. The key
	// should be the service role key; this is a server-side process.
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_key"`

	// Bucket is the object-storage bucket holding uploaded photos
	// (default: memories).
	Bucket string `yaml:"bucket"`

	// DataPath is the directory for the local backend's SQLite database
	// and media files (default: ./data).
	DataPath string `yaml:"data_path"`
}

// SlideshowConfig contains presentation settings.
type SlideshowConfig struct {
	// Interval is the autoplay period (default: 5s).
	Interval time.Duration `yaml:"interval"`

	// ShareBaseURL, when set, enables the share action by prefixing the
	// current slide id. Empty means sharing reports unsupported.
	ShareBaseURL string `yaml:"share_base_url"`
}

// UploadConfig contains upload pipeline settings.
type UploadConfig struct {
	// MaxBytes is the upload size ceiling (default: 5 MiB, matching the
	// bucket object size limit).
	MaxBytes int64 `yaml:"max_bytes"`
}

// ImageCheckConfig contains image availability checker settings.
type ImageCheckConfig struct {
	// Timeout bounds a single availability check (default: 5s).
	// An unbounded check is a known regression risk; zero is coerced.
	Timeout time.Duration `yaml:"timeout"`
}

// AnniversaryConfig pins the recurring annual date the countdown targets.
type AnniversaryConfig struct {
	Month int `yaml:"month"` // 1-12 (default: 5)
	Day   int `yaml:"day"`   // 1-31 (default: 20)
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"security_mode"` // development or production (default: development)
	APIToken     string `yaml:"api_token"`     // API authentication token
}

// LoadConfig loads configuration from environment variables with defaults.
func LoadConfig() (*Config, error) {
	cfg := defaults()
	applyEnv(cfg)
	return cfg, cfg.validate()
}

// LoadConfigFromFile loads a YAML config file, then applies environment
// variable overrides on top of it.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, cfg.validate()
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 6464,
			Host: "127.0.0.1",
		},
		Backend: BackendConfig{
			Engine:   "local",
			Bucket:   "memories",
			DataPath: "./data",
		},
		Slideshow: SlideshowConfig{
			Interval: 5 * time.Second,
		},
		Upload: UploadConfig{
			MaxBytes: 5 * 1024 * 1024,
		},
		ImageCheck: ImageCheckConfig{
			Timeout: 5 * time.Second,
		},
		Anniversary: AnniversaryConfig{
			Month: 5,
			Day:   20,
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("KEEPSAKE_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("KEEPSAKE_HOST", cfg.Server.Host)

	cfg.Backend.Engine = getEnv("KEEPSAKE_BACKEND", cfg.Backend.Engine)
	cfg.Backend.SupabaseURL = getEnv("KEEPSAKE_SUPABASE_URL", cfg.Backend.SupabaseURL)
	cfg.Backend.SupabaseKey = getEnv("KEEPSAKE_SUPABASE_SERVICE_ROLE_KEY", cfg.Backend.SupabaseKey)
	cfg.Backend.Bucket = getEnv("KEEPSAKE_BUCKET", cfg.Backend.Bucket)
	cfg.Backend.DataPath = getEnv("KEEPSAKE_DATA_PATH", cfg.Backend.DataPath)

	cfg.Slideshow.Interval = getEnvDuration("KEEPSAKE_SLIDESHOW_INTERVAL", cfg.Slideshow.Interval)
	cfg.Slideshow.ShareBaseURL = getEnv("KEEPSAKE_SHARE_BASE_URL", cfg.Slideshow.ShareBaseURL)

	cfg.Upload.MaxBytes = getEnvInt64("KEEPSAKE_UPLOAD_MAX_BYTES", cfg.Upload.MaxBytes)
	cfg.ImageCheck.Timeout = getEnvDuration("KEEPSAKE_IMAGE_CHECK_TIMEOUT", cfg.ImageCheck.Timeout)

	cfg.Anniversary.Month = getEnvInt("KEEPSAKE_ANNIVERSARY_MONTH", cfg.Anniversary.Month)
	cfg.Anniversary.Day = getEnvInt("KEEPSAKE_ANNIVERSARY_DAY", cfg.Anniversary.Day)

	cfg.Security.SecurityMode = getEnv("KEEPSAKE_SECURITY_MODE", cfg.Security.SecurityMode)
	cfg.Security.APIToken = getEnv("KEEPSAKE_API_TOKEN", cfg.Security.APIToken)
}

func (c *Config) validate() error {
	if c.Backend.Engine != "local" && c.Backend.Engine != "supabase" {
		return fmt.Errorf("config: unknown backend engine %q", c.Backend.Engine)
	}
	if c.Backend.Engine == "supabase" && (c.Backend.SupabaseURL == "" || c.Backend.SupabaseKey == "") {
		return fmt.Errorf("config: supabase backend requires KEEPSAKE_SUPABASE_URL and KEEPSAKE_SUPABASE_SERVICE_ROLE_KEY")
	}
	if c.Anniversary.Month < 1 || c.Anniversary.Month > 12 {
		return fmt.Errorf("config: anniversary month %d out of range", c.Anniversary.Month)
	}
	if c.Anniversary.Day < 1 || c.Anniversary.Day > 31 {
		return fmt.Errorf("config: anniversary day %d out of range", c.Anniversary.Day)
	}
	if c.Slideshow.Interval <= 0 {
		c.Slideshow.Interval = 5 * time.Second
	}
	if c.ImageCheck.Timeout <= 0 {
		c.ImageCheck.Timeout = 5 * time.Second
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 5 * 1024 * 1024
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "5s",
// "1500ms") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
