// Package config resolves mapbuilder settings from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/corey/mapbuilder/internal/domain/zoning"
	"github.com/corey/mapbuilder/internal/logging"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultBaseURL       = "https://api.lightboxre.com/v1"
	DefaultTimeout       = 10 * time.Second
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 3001
	DefaultAllowedOrigin = "*"
	DefaultCachePath     = ".mapbuilder/cache.db"
	DefaultCacheTTL      = 24 * time.Hour
	DefaultLogLevel      = "info"

	// DefaultFile is looked up under the project root when --config is not given.
	DefaultFile = ".mapbuilder/config.yaml"
)

// Config holds the resolved configuration.
type Config struct {
	LogLevel    string         `yaml:"log_level"`
	FixturesDir string         `yaml:"fixtures_dir"`
	LightBox    LightBoxConfig `yaml:"lightbox"`
	Server      ServerConfig   `yaml:"server"`
	Cache       CacheConfig    `yaml:"cache"`
	Zoning      ZoningConfig   `yaml:"zoning"`

	// Source is the YAML file that was read, empty when none.
	Source string `yaml:"-"`
}

// LightBoxConfig configures the upstream parcel API.
type LightBoxConfig struct {
	APIKey  string        `yaml:"-"` // env only
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	AllowedOrigin string `yaml:"allowed_origin"`
}

// CacheConfig configures the upstream payload cache. A zero TTL disables it.
type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

// ZoningConfig extends the tie-break vocabulary. Keys are phrases, values
// are "min" or "max".
type ZoningConfig struct {
	ExtraPhrases map[string]string `yaml:"extra_phrases"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		LightBox: LightBoxConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
		},
		Server: ServerConfig{
			Host:          DefaultHost,
			Port:          DefaultPort,
			AllowedOrigin: DefaultAllowedOrigin,
		},
		Cache: CacheConfig{
			Path: DefaultCachePath,
			TTL:  DefaultCacheTTL,
		},
	}
}

// Discover returns the default config file under root if it exists.
func Discover(root string) string {
	path := filepath.Join(root, DefaultFile)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg.Source = path
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	// DEBUG flag overrides log level
	if os.Getenv("DEBUG") == "1" {
		c.LogLevel = "debug"
	}

	c.LightBox.APIKey = getEnvOrDefault("LIGHTBOX_API_KEY", c.LightBox.APIKey)
	c.LightBox.BaseURL = getEnvOrDefault("LIGHTBOX_BASE_URL", c.LightBox.BaseURL)
	c.FixturesDir = getEnvOrDefault("MAPBUILDER_FIXTURES", c.FixturesDir)
	c.Cache.Path = getEnvOrDefault("MAPBUILDER_DB", c.Cache.Path)

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("MAPBUILDER_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MAPBUILDER_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = ttl
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl %s is negative", c.Cache.TTL))
	}
	if c.LightBox.Timeout < 0 {
		errs = append(errs, fmt.Errorf("lightbox.timeout %s is negative", c.LightBox.Timeout))
	}
	if u, err := url.Parse(c.LightBox.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("lightbox.base_url %q is not an absolute URL", c.LightBox.BaseURL))
	}
	if _, err := c.Vocabulary(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Vocabulary returns the default tie-break phrases merged with the
// configured extras. An extra that equals or occurs inside a default phrase
// is rejected.
func (c *Config) Vocabulary() (zoning.Vocabulary, error) {
	defaults := zoning.DefaultVocabulary()
	vocab := zoning.DefaultVocabulary()
	for phrase, kind := range c.Zoning.ExtraPhrases {
		if phrase == "" {
			return nil, fmt.Errorf("zoning.extra_phrases: empty phrase")
		}
		// Text holding only a default phrase must resolve as it does without
		// extras, so an extra may neither redefine a default phrase nor match
		// inside one.
		for def := range defaults {
			if strings.Contains(def, phrase) {
				return nil, fmt.Errorf("zoning.extra_phrases[%q]: overlaps default phrase %q", phrase, def)
			}
		}
		switch strings.ToLower(kind) {
		case "min":
			vocab[phrase] = zoning.KindConditionalMin
		case "max":
			vocab[phrase] = zoning.KindConditionalMax
		default:
			return nil, fmt.Errorf("zoning.extra_phrases[%q]: kind %q, want min or max", phrase, kind)
		}
	}
	return vocab, nil
}

// CacheEnabled reports whether upstream payloads should be cached.
func (c *Config) CacheEnabled() bool {
	return c.Cache.TTL > 0 && c.Cache.Path != ""
}

// Offline reports whether parcels come from the fixtures directory.
func (c *Config) Offline() bool {
	return c.FixturesDir != ""
}

// RedactedAPIKey returns the API key masked for display.
func (c *Config) RedactedAPIKey() string {
	key := c.LightBox.APIKey
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 8:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}

// ExtraPhraseList returns the configured extra phrases, sorted.
func (c *Config) ExtraPhraseList() []string {
	out := make([]string, 0, len(c.Zoning.ExtraPhrases))
	for p := range c.Zoning.ExtraPhrases {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
