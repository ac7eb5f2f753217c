// Package config provides configuration management for heimdall.
//
// Config file locations (priority order):
//  1. $HEIMDALL_CONFIG
//  2. ./heimdall.yaml
//  3. $XDG_CONFIG_HOME/heimdall/config.yaml or ~/.config/heimdall/config.yaml
//  4. /etc/heimdall/config.yaml
//
// A .env file next to the config file (or in the working directory) is
// loaded first; HEIMDALL_* variables then override file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr     = ":8080"
	defaultDatabasePath = ":memory:"
	defaultCacheTTL     = 2 * time.Second
	defaultFetchTimeout = 30 * time.Second
	defaultPollInterval = time.Second
	defaultIdleInterval = 10 * time.Second
	defaultNmapInterval = 5 * time.Minute
	defaultNmapTimeout  = 2 * time.Minute
)

var validate = validator.New()

// Load finds and loads the config file, or returns defaults if none found.
// Environment overrides apply in both cases.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	loadDotEnv(path)

	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.finish(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Parse decodes a config document over the defaults, then applies
// environment overrides and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return err
	}
	c.applyDefaults()
	return c.Validate()
}

// loadDotEnv loads .env files without overriding variables already set
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}
	for _, f := range candidates {
		if !fileExists(f) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("path", f).Msg("Failed to load .env file")
		}
	}
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Docker: DockerConfig{
			Enabled:      true,
			CacheTTL:     Duration(defaultCacheTTL),
			FetchTimeout: Duration(defaultFetchTimeout),
			LinkByEnv:    true,
		},
		Nmap: NmapConfig{
			Interval:         Duration(defaultNmapInterval),
			Timeout:          Duration(defaultNmapTimeout),
			ServiceDetection: true,
		},
		Poll: PollConfig{
			Interval:     Duration(defaultPollInterval),
			IdleInterval: Duration(defaultIdleInterval),
		},
		Display:  DisplayConfig{Apps: true, Networks: true},
		HTTP:     HTTPConfig{Addr: defaultHTTPAddr},
		Log:      LogConfig{Level: "info", Format: "auto"},
		Database: DatabaseConfig{Path: defaultDatabasePath},
	}
}

// applyDefaults fills in values left empty or zero
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Docker.CacheTTL == 0 {
		c.Docker.CacheTTL = Duration(defaultCacheTTL)
	}
	if c.Docker.FetchTimeout == 0 {
		c.Docker.FetchTimeout = Duration(defaultFetchTimeout)
	}
	if c.Nmap.Interval == 0 {
		c.Nmap.Interval = Duration(defaultNmapInterval)
	}
	if c.Nmap.Timeout == 0 {
		c.Nmap.Timeout = Duration(defaultNmapTimeout)
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = Duration(defaultPollInterval)
	}
	if c.Poll.IdleInterval == 0 {
		c.Poll.IdleInterval = Duration(defaultIdleInterval)
	}
	if c.Poll.IdleInterval < c.Poll.Interval {
		c.Poll.IdleInterval = c.Poll.Interval
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "auto"
	}
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
}

// applyEnv overrides file values with HEIMDALL_* variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = Duration(d)
		return nil
	}

	str("HEIMDALL_DOCKER_HOST", &c.Docker.Host)
	str("HEIMDALL_LINK_LABEL_PREFIX", &c.Docker.LinkLabelPrefix)
	str("HEIMDALL_HTTP_ADDR", &c.HTTP.Addr)
	str("HEIMDALL_LOG_LEVEL", &c.Log.Level)
	str("HEIMDALL_LOG_FORMAT", &c.Log.Format)
	str("HEIMDALL_DATABASE_PATH", &c.Database.Path)
	str("HEIMDALL_NMAP_PORTS", &c.Nmap.Ports)

	for key, dst := range map[string]*Duration{
		"HEIMDALL_CACHE_TTL":          &c.Docker.CacheTTL,
		"HEIMDALL_FETCH_TIMEOUT":      &c.Docker.FetchTimeout,
		"HEIMDALL_POLL_INTERVAL":      &c.Poll.Interval,
		"HEIMDALL_POLL_IDLE_INTERVAL": &c.Poll.IdleInterval,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}

	// A target list implies the scanner is wanted.
	if v, ok := lookup("HEIMDALL_NMAP_TARGETS"); ok && strings.TrimSpace(v) != "" {
		c.Nmap.Targets = nil
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.Nmap.Targets = append(c.Nmap.Targets, t)
			}
		}
		c.Nmap.Enabled = true
	}
	return nil
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Nmap.Enabled && len(c.Nmap.Targets) == 0 {
		return fmt.Errorf("invalid config: nmap is enabled without targets")
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Docker: %t (cache %s), Nmap: %t (%d targets)\n",
		c.Docker.Enabled, c.Docker.CacheTTL.Duration(), c.Nmap.Enabled, len(c.Nmap.Targets))
	summary += fmt.Sprintf("Poll: %s active, %s idle; listening on %s",
		c.Poll.Interval.Duration(), c.Poll.IdleInterval.Duration(), c.HTTP.Addr)
	return summary
}
