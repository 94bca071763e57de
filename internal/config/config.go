package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// LogConfig configures the zap logger
type LogConfig struct {
	Level    string `toml:"level"`
	Encoding string `toml:"encoding"`
	// File switches logging to a rotated file. The dashboard always logs to a file.
	File        string `toml:"file"`
	MaxFileSize int    `toml:"max_file_size"` // In megabytes
}

// LayoutConfig holds the row heights of the dashboard, in terminal lines
type LayoutConfig struct {
	RowHeight     int `toml:"row_height"`
	PendingHeight int `toml:"pending_height"`
	CommentHeight int `toml:"comment_height"`
	DateHeight    int `toml:"date_height"`
}

// Config is the walhist configuration file
type Config struct {
	DataDir           string       `toml:"data_dir"`
	Timezone          string       `toml:"timezone"`
	Ticker            string       `toml:"ticker"`
	PreloadThreshold  int          `toml:"preload_threshold"`
	PageSize          int          `toml:"page_size"`
	Workers           int          `toml:"workers"`
	CommentPassphrase string       `toml:"comment_passphrase"`
	Layout            LayoutConfig `toml:"layout"`
	Log               LogConfig    `toml:"log"`
}

// DefaultPath returns ~/.walhist/config.toml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".walhist", "config.toml"), nil
}

// Default returns the configuration written on first start
func Default(dir string) *Config {
	return &Config{
		DataDir:          dir,
		Timezone:         "Local",
		Ticker:           "MAIN",
		PreloadThreshold: 10,
		PageSize:         20,
		Workers:          4,
		Layout: LayoutConfig{
			RowHeight:     1,
			PendingHeight: 1,
			CommentHeight: 1,
			DateHeight:    1,
		},
		Log: LogConfig{
			Level:       "info",
			Encoding:    "console",
			MaxFileSize: 10,
		},
	}
}

// Load reads the config at path, creating it with defaults when missing.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.DataDir = Env("WALHIST_DATA_DIR", c.DataDir)
	c.Timezone = Env("WALHIST_TIMEZONE", c.Timezone)
	c.CommentPassphrase = Env("WALHIST_PASSPHRASE", c.CommentPassphrase)
	c.PreloadThreshold = EnvInt("WALHIST_PRELOAD_THRESHOLD", c.PreloadThreshold)
	c.PageSize = EnvInt("WALHIST_PAGE_SIZE", c.PageSize)
	c.Workers = EnvInt("WALHIST_WORKERS", c.Workers)
	c.Log.Level = Env("LOG_LEVEL", c.Log.Level)
	c.Log.Encoding = Env("LOG_ENCODING", c.Log.Encoding)
	c.Log.File = Env("LOG_FILE", c.Log.File)
}

// Validate rejects values the history view cannot work with
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.PreloadThreshold <= 0 {
		return fmt.Errorf("preload_threshold must be positive, got %d", c.PreloadThreshold)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	l := c.Layout
	if l.RowHeight <= 0 || l.PendingHeight <= 0 || l.CommentHeight <= 0 || l.DateHeight <= 0 {
		return fmt.Errorf("layout heights must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone used to split history into days
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
