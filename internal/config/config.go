// Package config loads runtime configuration from JSON, YAML or TOML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/alvmarrod/wiki-wanted/internal/storage"
)

const configInvalidCode = "CONFIG_INVALID"

// Config holds all runtime configuration parameters
type Config struct {
	LogLevel   string            `json:"log_level" yaml:"log_level" toml:"log_level"`
	Database   Database          `json:"database" yaml:"database" toml:"database"`
	Server     Server            `json:"server" yaml:"server" toml:"server"`
	Namespaces map[string]int    `json:"namespaces" yaml:"namespaces" toml:"namespaces"`
	Messages   map[string]string `json:"messages" yaml:"messages" toml:"messages"`
	Harvest    Harvest           `json:"harvest" yaml:"harvest" toml:"harvest"`
}

// Database selects the store driver
type Database struct {
	Driver string `json:"driver" yaml:"driver" toml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn" toml:"dsn"`
}

// Server configures the HTTP front end
type Server struct {
	Addr        string `json:"addr" yaml:"addr" toml:"addr"`
	ArticlePath string `json:"article_path" yaml:"article_path" toml:"article_path"`
}

// Harvest configures the link-graph crawler
type Harvest struct {
	SeedURL           string `json:"seed_url" yaml:"seed_url" toml:"seed_url"`
	MaxDepth          int    `json:"max_depth" yaml:"max_depth" toml:"max_depth"`
	MaxPages          int    `json:"max_pages" yaml:"max_pages" toml:"max_pages"`
	ConcurrentWorkers int    `json:"concurrent_workers" yaml:"concurrent_workers" toml:"concurrent_workers"`
	RequestTimeoutMs  int    `json:"request_timeout_ms" yaml:"request_timeout_ms" toml:"request_timeout_ms"`
	ContentSelector   string `json:"content_selector" yaml:"content_selector" toml:"content_selector"`
	MetricsPath       string `json:"metrics_path" yaml:"metrics_path" toml:"metrics_path"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads and validates configuration. The decoder is chosen by
// extension: .json, .yaml/.yml or .toml.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, invalid(fmt.Errorf("unsupported config extension %q", ext))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = storage.DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == storage.DriverSQLite {
		cfg.Database.DSN = "wiki.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ArticlePath == "" {
		cfg.Server.ArticlePath = "/wiki/"
	}
	if !strings.HasSuffix(cfg.Server.ArticlePath, "/") {
		cfg.Server.ArticlePath += "/"
	}
	if cfg.Harvest.MaxDepth == 0 {
		cfg.Harvest.MaxDepth = 3
	}
	if cfg.Harvest.MaxPages == 0 {
		cfg.Harvest.MaxPages = 500
	}
	if cfg.Harvest.ConcurrentWorkers == 0 {
		cfg.Harvest.ConcurrentWorkers = 3
	}
	if cfg.Harvest.RequestTimeoutMs == 0 {
		cfg.Harvest.RequestTimeoutMs = 5000
	}
	if cfg.Harvest.ContentSelector == "" {
		cfg.Harvest.ContentSelector = "#mw-content-text"
	}
	if cfg.Harvest.MetricsPath == "" {
		cfg.Harvest.MetricsPath = "harvest-metrics.json"
	}
}

// validate checks that values are sensible. The seed URL is only
// required by ValidateHarvest.
func validate(cfg *Config) error {
	err := validation.Errors{
		"log_level": validation.Validate(cfg.LogLevel,
			validation.In("trace", "debug", "info", "warn", "warning", "error", "fatal", "panic")),
		"database.driver": validation.Validate(cfg.Database.Driver,
			validation.Required, validation.In(storage.DriverSQLite, storage.DriverPostgres)),
		"database.dsn":               validation.Validate(cfg.Database.DSN, validation.Required),
		"server.article_path":        validation.Validate(cfg.Server.ArticlePath, validation.By(startsWithSlash)),
		"harvest.max_depth":          validation.Validate(cfg.Harvest.MaxDepth, validation.Min(1)),
		"harvest.max_pages":          validation.Validate(cfg.Harvest.MaxPages, validation.Min(1)),
		"harvest.concurrent_workers": validation.Validate(cfg.Harvest.ConcurrentWorkers, validation.Min(1)),
		"harvest.request_timeout_ms": validation.Validate(cfg.Harvest.RequestTimeoutMs, validation.Min(1000)),
		"namespaces":                 validateNamespaces(cfg.Namespaces),
	}.Filter()
	return invalid(err)
}

// ValidateHarvest checks the settings a harvest run needs on top of validate
func ValidateHarvest(cfg *Config) error {
	err := validation.Errors{
		"harvest.seed_url": validation.Validate(cfg.Harvest.SeedURL, validation.Required, validation.By(httpURL)),
	}.Filter()
	return invalid(err)
}

func validateNamespaces(namespaces map[string]int) error {
	for name, id := range namespaces {
		if strings.TrimSpace(name) == "" {
			return validation.NewError("config.namespaces.empty_name", "namespace names must not be empty")
		}
		if id < 0 {
			return validation.NewError("config.namespaces.negative_id", fmt.Sprintf("namespace %q must have a non-negative id", name))
		}
	}
	return nil
}

func startsWithSlash(value any) error {
	if s, _ := value.(string); !strings.HasPrefix(s, "/") {
		return validation.NewError("config.path.absolute", "must start with /")
	}
	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return validation.NewError("config.url.scheme", "must be an http or https URL")
	}
	return nil
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration").
		WithTextCode(configInvalidCode)
}
