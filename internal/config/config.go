package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendPython = "python"
	BackendHTTP   = "http"

	NameStrategyBase     = "base"
	NameStrategyPathHash = "path-hash"

	defaultDatabaseURL = "postgres://localhost:5432/faceindex"
)

type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
}

type DetectorConfig struct {
	Backend string        `yaml:"backend"` // python or http
	Script  string        `yaml:"script"`  // python worker entry point
	URL     string        `yaml:"url"`     // embedding server for the http backend
	Timeout time.Duration `yaml:"timeout"` // per-image round trip
}

type IndexConfig struct {
	OutputDir    string   `yaml:"output_dir"`
	MaxFaces     int      `yaml:"max_faces"`
	Tolerance    float64  `yaml:"tolerance"`
	NameStrategy string   `yaml:"name_strategy"`
	Extensions   []string `yaml:"extensions"`
	Workers      int      `yaml:"workers"` // visualize concurrency
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend: BackendPython,
			Script:  "python/worker.py",
			URL:     "http://localhost:8000",
			Timeout: 60 * time.Second,
		},
		Index: IndexConfig{
			OutputDir:    "faces_indexed",
			MaxFaces:     4,
			Tolerance:    0.6,
			NameStrategy: NameStrategyBase,
			Workers:      4,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A missing file is only an error when path is set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("FACEINDEX_DETECTOR", &cfg.Detector.Backend)
	envString("FACEINDEX_WORKER_SCRIPT", &cfg.Detector.Script)
	envString("EMBEDDING_URL", &cfg.Detector.URL)
	envString("FACEINDEX_EMBEDDING_URL", &cfg.Detector.URL)
	if d, err := time.ParseDuration(os.Getenv("FACEINDEX_WORKER_TIMEOUT")); err == nil && d > 0 {
		cfg.Detector.Timeout = d
	}

	envString("FACEINDEX_OUTPUT_DIR", &cfg.Index.OutputDir)
	cfg.Index.MaxFaces = envInt("FACEINDEX_MAX_FACES", cfg.Index.MaxFaces)
	cfg.Index.Workers = envInt("FACEINDEX_WORKERS", cfg.Index.Workers)
	envString("FACEINDEX_NAME_STRATEGY", &cfg.Index.NameStrategy)
	if s := os.Getenv("FACEINDEX_TOLERANCE"); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
			cfg.Index.Tolerance = f
		}
	}
	if s := os.Getenv("FACEINDEX_EXTENSIONS"); s != "" {
		cfg.Index.Extensions = strings.Split(s, ",")
	}

	// DATABASE_URL wins; otherwise assemble one from the POSTGRES_* variables.
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	} else if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		cfg.Database.URL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	if cfg.Database.URL == "" {
		// Fallback to local default if no env vars are present
		cfg.Database.URL = defaultDatabaseURL
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case BackendPython, BackendHTTP:
	default:
		return fmt.Errorf("unknown detector backend %q (want %s or %s)", c.Detector.Backend, BackendPython, BackendHTTP)
	}
	switch c.Index.NameStrategy {
	case NameStrategyBase, NameStrategyPathHash:
	default:
		return fmt.Errorf("unknown name strategy %q (want %s or %s)", c.Index.NameStrategy, NameStrategyBase, NameStrategyPathHash)
	}
	if c.Index.MaxFaces < 1 {
		return errors.New("max faces must be at least 1")
	}
	if c.Index.Tolerance < 0 {
		return errors.New("tolerance must not be negative")
	}
	if c.Index.Workers < 1 {
		return errors.New("workers must be at least 1")
	}
	return nil
}

func envString(key string, dst *string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}
