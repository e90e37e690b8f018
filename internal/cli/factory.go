// Package cli holds the plumbing shared by the kiln commands.
package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/kiln"
	"github.com/aretw0/kiln/internal/config"
	"github.com/aretw0/kiln/internal/logging"
)

// Flags are the command line overrides. Empty fields leave the value from
// the file and the environment untouched.
type Flags struct {
	ConfigPath string
	Entry      string
	Mods       string
	SearchPath string
	Protected  []string
	LogLevel   string
	Debug      bool
}

// LoadConfig layers the flags over config.Load and validates the result.
func LoadConfig(f Flags) (config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if f.Entry != "" {
		cfg.EntrySymbol = f.Entry
	}
	if f.Mods != "" {
		cfg.ModsDir = f.Mods
	}
	if f.SearchPath != "" {
		cfg.SearchPath = f.SearchPath
	}
	if len(f.Protected) > 0 {
		cfg.ProtectedPrefixes = f.Protected
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// CreateLogger returns the stderr logger for cfg.LogLevel. "off" discards
// everything.
func CreateLogger(cfg config.Config) *slog.Logger {
	if strings.EqualFold(cfg.LogLevel, "off") {
		return logging.NewNop()
	}
	return logging.New(logging.ParseLevel(cfg.LogLevel))
}

// CreateRuntime loads the configuration and builds a runtime with a logger
// matching it. Extra options are applied after the logger.
func CreateRuntime(f Flags, opts ...kiln.Option) (*kiln.Runtime, config.Config, error) {
	cfg, err := LoadConfig(f)
	if err != nil {
		return nil, cfg, fmt.Errorf("error loading configuration: %w", err)
	}
	logger := CreateLogger(cfg)
	rt, err := kiln.New(cfg, append([]kiln.Option{kiln.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, cfg, err
	}
	return rt, cfg, nil
}
