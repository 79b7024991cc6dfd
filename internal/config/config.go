package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/beatbank/internal/analyzer"
	"github.com/llehouerou/beatbank/internal/logger"
)

const (
	appName          = "beatbank"
	configFileName   = "config.toml"
	dbFileName       = "catalog.db"
	settingsFileName = "settings.json"
)

type Config struct {
	DatabasePath string `koanf:"database_path"` // empty means the XDG data dir
	SettingsPath string `koanf:"settings_path"` // empty means the XDG config dir

	// External key/tempo analyzer
	Analyzer AnalyzerConfig `koanf:"analyzer"`

	// Logging
	Log LogConfig `koanf:"log"`
}

// AnalyzerConfig holds the analyzer process settings.
type AnalyzerConfig struct {
	Python         string   `koanf:"python"`          // interpreter (default: python3)
	Script         string   `koanf:"script"`          // empty uses the bundled script
	SearchPath     []string `koanf:"search_path"`     // prepended to PYTHONPATH of the child
	TimeoutSeconds int      `koanf:"timeout_seconds"` // per file (default: 120)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `koanf:"level"`        // debug, info, warn, error (default: info)
	Format     string `koanf:"format"`       // "console" or "json" (default: console)
	File       string `koanf:"file"`         // optional log file, rotated
	MaxSizeMB  int    `koanf:"max_size_mb"`  // default: 10
	MaxBackups int    `koanf:"max_backups"`  // default: 3
	MaxAgeDays int    `koanf:"max_age_days"` // default: 28
}

// Load reads the config files in order of priority (last wins).
func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom reads the given TOML files, skipping those that do not exist.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.DatabasePath = expandPath(cfg.DatabasePath)
	cfg.SettingsPath = expandPath(cfg.SettingsPath)
	cfg.Analyzer.Python = expandPath(cfg.Analyzer.Python)
	cfg.Analyzer.Script = expandPath(cfg.Analyzer.Script)
	for i, p := range cfg.Analyzer.SearchPath {
		cfg.Analyzer.SearchPath[i] = expandPath(p)
	}
	cfg.Log.File = expandPath(cfg.Log.File)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. $XDG_CONFIG_HOME/beatbank/config.toml
	if xdg.ConfigHome != "" {
		paths = append(paths, filepath.Join(xdg.ConfigHome, appName, configFileName))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, configFileName)

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetDatabasePath returns the catalog database path, defaulting to the XDG
// data dir.
func (c *Config) GetDatabasePath() (string, error) {
	if c.DatabasePath != "" {
		return c.DatabasePath, nil
	}
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}

// GetSettingsPath returns the settings file path, defaulting to the XDG
// config dir.
func (c *Config) GetSettingsPath() (string, error) {
	if c.SettingsPath != "" {
		return c.SettingsPath, nil
	}
	return xdg.ConfigFile(filepath.Join(appName, settingsFileName))
}

// GetAnalyzerConfig returns the analyzer configuration with defaults applied.
func (c *Config) GetAnalyzerConfig() analyzer.Config {
	cfg := analyzer.Config{
		Python:     c.Analyzer.Python,
		Script:     c.Analyzer.Script,
		SearchPath: c.Analyzer.SearchPath,
		Timeout:    analyzer.DefaultTimeout,
	}
	if cfg.Python == "" {
		cfg.Python = analyzer.DefaultPython
	}
	if c.Analyzer.TimeoutSeconds > 0 {
		cfg.Timeout = time.Duration(c.Analyzer.TimeoutSeconds) * time.Second
	}
	return cfg
}

// GetLogConfig returns the logging configuration with defaults applied.
func (c *Config) GetLogConfig() logger.Config {
	cfg := logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}

	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		cfg.Level = "info"
	}
	if cfg.Format != logger.FormatJSON {
		cfg.Format = logger.FormatConsole
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 28
	}

	return cfg
}
