// Package config assembles kiln's configuration from defaults, an optional
// file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/kiln/internal/loader"
	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "kiln.yaml"

var ErrInvalid = errors.New("invalid configuration")

// Config holds the runtime settings.
type Config struct {
	// EntrySymbol names the unit whose main method starts the program.
	EntrySymbol string `mapstructure:"entry" yaml:"entry" json:"entry" env:"KILN_ENTRY"`
	// ModsDir is scanned for extension packages.
	ModsDir string `mapstructure:"mods" yaml:"mods" json:"mods" env:"KILN_MODS"`
	// SearchPath lists directories and archives holding the base program.
	SearchPath string `mapstructure:"classpath" yaml:"classpath" json:"classpath" env:"KILN_CLASSPATH"`
	// ProtectedPrefixes are resolved by the host only.
	ProtectedPrefixes []string `mapstructure:"protected" yaml:"protected" json:"protected" env:"KILN_PROTECTED" envSeparator:","`
	LogLevel          string   `mapstructure:"log_level" yaml:"log_level" json:"log_level" env:"KILN_LOG_LEVEL"`
	// MetricsAddr is the listen address of kiln serve.
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr" env:"KILN_METRICS_ADDR"`
	// RedisURL, when set, publishes every transformation outcome to Redis.
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url" env:"KILN_REDIS_URL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		EntrySymbol:       "com.example.Main",
		ModsDir:           "mods",
		SearchPath:        "classes",
		ProtectedPrefixes: append([]string(nil), loader.DefaultProtected...),
		LogLevel:          "info",
		MetricsAddr:       ":2112",
	}
}

// Load returns the defaults overlaid with the file at path and then with the
// environment. An empty path tries DefaultFile and ignores its absence.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	raw, err := readFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return Config{}, err
	default:
		if err := decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readFile parses YAML, JSON or TOML by file extension into a generic map.
func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return raw, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// Validate checks required settings.
func (c Config) Validate() error {
	if strings.TrimSpace(c.EntrySymbol) == "" {
		return fmt.Errorf("%w: entry symbol is empty", ErrInvalid)
	}
	if strings.TrimSpace(c.ModsDir) == "" {
		return fmt.Errorf("%w: mods directory is empty", ErrInvalid)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error", "off":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}
