// ABOUTME: Client and server configuration loading
// ABOUTME: Reads YAML or TOML files, .env files, and TIMEVIEW_* overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/cms-dev/timeview-go/internal/display"
)

// ErrUnknownFormat is returned for config files that are neither YAML nor TOML
var ErrUnknownFormat = errors.New("unknown config format")

const envPrefix = "TIMEVIEW_"

// Config holds client settings
type Config struct {
	TimeURL     string `yaml:"time_url" toml:"time_url"`
	WSURL       string `yaml:"ws_url" toml:"ws_url"`
	EventsFile  string `yaml:"events_file" toml:"events_file"`
	EventsURL   string `yaml:"events_url" toml:"events_url"`
	NATSURL     string `yaml:"nats_url" toml:"nats_url"`
	NATSSubject string `yaml:"nats_subject" toml:"nats_subject"`
	Mode        string `yaml:"mode" toml:"mode"`
	Timezone    string `yaml:"timezone" toml:"timezone"`
	LogFile     string `yaml:"log_file" toml:"log_file"`
	Debug       bool   `yaml:"debug" toml:"debug"`
	NoTUI       bool   `yaml:"no_tui" toml:"no_tui"`
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
	Discover    bool   `yaml:"discover" toml:"discover"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		Mode:    "elapsed",
		LogFile: "timeview.log",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := decode(data, filepath.Ext(path), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, ext string, v interface{}) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	case ".toml":
		return toml.Unmarshal(data, v)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
}

// LoadDotEnv loads .env files into the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides fields from TIMEVIEW_* environment variables
func (c *Config) ApplyEnv() {
	c.TimeURL = getEnv("TIME_URL", c.TimeURL)
	c.WSURL = getEnv("WS_URL", c.WSURL)
	c.EventsFile = getEnv("EVENTS_FILE", c.EventsFile)
	c.EventsURL = getEnv("EVENTS_URL", c.EventsURL)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSSubject = getEnv("NATS_SUBJECT", c.NATSSubject)
	c.Mode = getEnv("MODE", c.Mode)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.Debug = getEnvAsBool("DEBUG", c.Debug)
	c.NoTUI = getEnvAsBool("NO_TUI", c.NoTUI)
	c.Discover = getEnvAsBool("DISCOVER", c.Discover)
}

// DisplayMode parses Mode
func (c Config) DisplayMode() (display.Mode, error) {
	return display.ParseMode(c.Mode)
}

// Location resolves Timezone, defaulting to the system zone
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that a time source can be resolved
func (c Config) Validate() error {
	if c.TimeURL == "" && c.WSURL == "" && !c.Discover {
		return errors.New("one of time_url, ws_url, or discover is required")
	}
	if _, err := c.DisplayMode(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(envPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
