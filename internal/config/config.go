// Package config loads focustrack settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/focustrack/internal/normalize"
	"github.com/sadopc/focustrack/internal/store"
)

type HTTPConfig struct {
	Address string        `yaml:"address" env:"FOCUSTRACK_ADDRESS" env-default:"127.0.0.1:8000"`
	Timeout time.Duration `yaml:"timeout" env:"FOCUSTRACK_HTTP_TIMEOUT" env-default:"5s"`
}

type TrackerConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval" env:"FOCUSTRACK_POLL_INTERVAL" env-default:"2s"`
	SampleTimeout time.Duration `yaml:"sample_timeout" env:"FOCUSTRACK_SAMPLE_TIMEOUT" env-default:"1s"`
	// Resume restarts tracking of the last tracked task when serve starts.
	Resume bool `yaml:"resume" env:"FOCUSTRACK_RESUME" env-default:"false"`
}

type RetentionConfig struct {
	Days     int    `yaml:"days" env:"FOCUSTRACK_RETENTION_DAYS" env-default:"90"` // 0 disables
	Schedule string `yaml:"schedule" env:"FOCUSTRACK_RETENTION_SCHEDULE" env-default:"0 3 * * *"`
}

type NormalizeConfig struct {
	Rules []normalize.Rule `yaml:"rules"`
}

type Config struct {
	DBPath    string          `yaml:"db_path" env:"FOCUSTRACK_DB"`
	LogLevel  string          `yaml:"log_level" env:"FOCUSTRACK_LOG_LEVEL" env-default:"info"`
	LogFile   string          `yaml:"log_file" env:"FOCUSTRACK_LOG_FILE"`
	HTTP      HTTPConfig      `yaml:"http"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Retention RetentionConfig `yaml:"retention"`
	Normalize NormalizeConfig `yaml:"normalize"`

	// Path is the file the config was loaded from, if any.
	Path string `yaml:"-"`
}

// Default returns the built-in configuration. It matches the env-default
// tags above.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Address: "127.0.0.1:8000",
			Timeout: 5 * time.Second,
		},
		Tracker: TrackerConfig{
			PollInterval:  2 * time.Second,
			SampleTimeout: time.Second,
		},
		Retention: RetentionConfig{
			Days:     90,
			Schedule: "0 3 * * *",
		},
	}
}

// DefaultPath returns ~/.config/focustrack/config.yaml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "focustrack", "config.yaml"), nil
}

// Load reads configPath. A missing file is not an error: the environment
// and defaults are used instead.
func Load(configPath string) (Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	} else if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		var pe *os.PathError
		if !errors.As(err, &pe) {
			return cfg, fmt.Errorf("read config %q: %w", configPath, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return cfg, fmt.Errorf("read env: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if c.DBPath == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
		c.DBPath = p
	}
	if c.Tracker.PollInterval <= 0 {
		return fmt.Errorf("tracker.poll_interval must be positive, got %s", c.Tracker.PollInterval)
	}
	// A sample must finish before the next tick is due.
	if c.Tracker.SampleTimeout <= 0 || c.Tracker.SampleTimeout >= c.Tracker.PollInterval {
		c.Tracker.SampleTimeout = c.Tracker.PollInterval / 2
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative, got %d", c.Retention.Days)
	}
	return nil
}

// WriteDefault writes the default configuration to path. An existing file
// is only replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	cfg := Default()
	cfg.Normalize.Rules = []normalize.Rule{}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}
