// Package config loads the displayctl YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"displayctl/display"
	"displayctl/drivers"
	"displayctl/internal/appversion"
)

// CurrentVersion is written by DefaultConfig.
const CurrentVersion = "1.0"

type Config struct {
	Version  string          `yaml:"version"`
	Log      LogConfig       `yaml:"log"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Redis    RedisConfig     `yaml:"redis"`
	Displays []DisplayConfig `yaml:"displays"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
	// History is the number of states kept per display.
	History int `yaml:"history"`
}

// DisplayConfig describes one controlled display. Zero durations and
// retry counts leave the driver defaults in place.
type DisplayConfig struct {
	Name         string        `yaml:"name"`
	Driver       string        `yaml:"driver"`
	Port         string        `yaml:"port"`
	Baud         int           `yaml:"baud"`
	ID           int           `yaml:"id"`
	Timeout      time.Duration `yaml:"timeout"`
	CommandDelay time.Duration `yaml:"command_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxRetries   int           `yaml:"max_retries"`
}

var ErrNoDisplays = errors.New("no displays configured")

// LoadConfig reads and validates the configuration at path. Missing
// sections keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a configuration with no displays.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			Channel:  "displayctl_state",
			History:  1000,
		},
	}
}

// Validate checks the schema version and every display entry.
func (c *Config) Validate() error {
	if err := appversion.CheckConfig(c.Version); err != nil {
		return err
	}
	if len(c.Displays) == 0 {
		return ErrNoDisplays
	}
	seen := make(map[string]bool, len(c.Displays))
	for i, d := range c.Displays {
		if d.Name == "" {
			return fmt.Errorf("display %d: missing name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("display %q: duplicate name", d.Name)
		}
		seen[d.Name] = true
		if d.Port == "" {
			return fmt.Errorf("display %q: missing port", d.Name)
		}
		if !drivers.Known(d.Driver) {
			return fmt.Errorf("display %q: %w %q", d.Name, drivers.ErrUnknownDriver, d.Driver)
		}
		if d.Timeout < 0 || d.CommandDelay < 0 || d.PollInterval < 0 || d.MaxRetries < 0 {
			return fmt.Errorf("display %q: negative timing or retry value", d.Name)
		}
	}
	if c.Redis.Enabled && c.Redis.History < 0 {
		return fmt.Errorf("redis: negative history")
	}
	return nil
}

// Display returns the display configuration named name.
func (c *Config) Display(name string) (DisplayConfig, bool) {
	for _, d := range c.Displays {
		if d.Name == name {
			return d, true
		}
	}
	return DisplayConfig{}, false
}

// Options returns the controller options set in d.
func (d DisplayConfig) Options() []display.Option {
	opts := []display.Option{display.WithName(d.Name)}
	if d.Timeout > 0 {
		opts = append(opts, display.WithTimeout(d.Timeout))
	}
	if d.CommandDelay > 0 {
		opts = append(opts, display.WithCommandDelay(d.CommandDelay))
	}
	if d.PollInterval > 0 {
		opts = append(opts, display.WithPollInterval(d.PollInterval))
	}
	if d.MaxRetries > 0 {
		opts = append(opts, display.WithMaxRetries(d.MaxRetries))
	}
	return opts
}
