package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"gopkg.in/yaml.v3"
)

type Config struct {
	GalleryPath         string          `yaml:"gallery_path"`
	SimilarityThreshold float64         `yaml:"similarity_threshold"`
	LogsPath            string          `yaml:"logs_path"`
	LeaderPolicy        string          `yaml:"leader_policy"`
	ImageSize           int             `yaml:"image_size"`
	Embedding           EmbeddingConfig `yaml:"embedding"`
	Cache               CacheConfig     `yaml:"cache"`
	Log                 LogConfig       `yaml:"log"`
}

type EmbeddingConfig struct {
	URL         string `yaml:"url"`         // defaults to http://localhost:8000
	Model       string `yaml:"model"`       // defaults to clip
	Concurrency int    `yaml:"concurrency"` // parallel requests, defaults to 4
}

// CacheConfig selects the optional embedding cache backend.
type CacheConfig struct {
	Driver       string `yaml:"driver"` // "", "postgres" or "sqlite"
	URL          string `yaml:"url"`    // PostgreSQL DSN or SQLite file path
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// Enabled reports whether an embedding cache is configured.
func (c *CacheConfig) Enabled() bool {
	return c.Driver != "" && c.URL != ""
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name to a slog level, defaulting to info.
func (c *LogConfig) SlogLevel() slog.Level {
	switch strings.ToUpper(c.Level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ErrMissingGalleryPath is returned when neither the config file nor the environment sets gallery_path.
var ErrMissingGalleryPath = errors.New("gallery_path is required")

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Load reads the YAML config file at path, applies environment overrides and defaults,
// and validates the result. A missing file is not an error when GALLERY_PATH is set.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && os.Getenv("GALLERY_PATH") != "":
		// environment-only configuration
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.GalleryPath = envString("GALLERY_PATH", c.GalleryPath)
	c.SimilarityThreshold = envFloat("SIMILARITY_THRESHOLD", c.SimilarityThreshold)
	c.LogsPath = envString("LOGS_PATH", c.LogsPath)
	c.Embedding.URL = envString("EMBEDDING_URL", c.Embedding.URL)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Cache.Driver = "postgres"
		c.Cache.URL = dsn
	}
	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.File = envString("LOG_FILE", c.Log.File)
}

func (c *Config) applyDefaults() {
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = constants.DefaultSimilarityThreshold
	}
	if c.LogsPath == "" {
		c.LogsPath = "logs"
	}
	if c.LeaderPolicy == "" {
		c.LeaderPolicy = constants.DefaultLeaderPolicy
	}
	if c.ImageSize <= 0 {
		c.ImageSize = constants.ImageSize
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = constants.DefaultEmbeddingConcurrency
	}
	if c.Cache.MaxOpenConns <= 0 {
		c.Cache.MaxOpenConns = 5
	}
	if c.Cache.MaxIdleConns <= 0 {
		c.Cache.MaxIdleConns = 2
	}
}

// Validate checks that required values are present and in range.
func (c *Config) Validate() error {
	if c.GalleryPath == "" {
		return ErrMissingGalleryPath
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %v", c.SimilarityThreshold)
	}
	switch c.Cache.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	return nil
}
