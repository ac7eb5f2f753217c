package config

import (
	"time"

	"github.com/theredcat/heimdall/internal/domain"
)

// Config is the root configuration structure
type Config struct {
	Version  int            `yaml:"version" validate:"gte=1"`
	Docker   DockerConfig   `yaml:"docker"`
	Nmap     NmapConfig     `yaml:"nmap"`
	Poll     PollConfig     `yaml:"poll"`
	Display  DisplayConfig  `yaml:"display"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
}

// DockerConfig configures the Docker Engine source
type DockerConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Host            string   `yaml:"host,omitempty"` // empty = DOCKER_HOST or default socket
	CacheTTL        Duration `yaml:"cache_ttl" validate:"gte=0"`
	FetchTimeout    Duration `yaml:"fetch_timeout" validate:"gte=0"`
	LinkByEnv       bool     `yaml:"link_by_env"`
	LinkLabelPrefix string   `yaml:"link_label_prefix,omitempty"`
}

// NmapConfig configures the optional subnet scanner source
type NmapConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Targets           []string `yaml:"targets,omitempty" validate:"omitempty,dive,required"`
	Ports             string   `yaml:"ports,omitempty"`
	Interval          Duration `yaml:"interval" validate:"gte=0"`
	Timeout           Duration `yaml:"timeout" validate:"gte=0"`
	ServiceDetection  bool     `yaml:"service_detection"`
	OSDetection       bool     `yaml:"os_detection"`
	SkipHostDiscovery bool     `yaml:"skip_host_discovery"`
}

// PollConfig controls the refresh cadence
type PollConfig struct {
	Interval     Duration `yaml:"interval" validate:"gte=0"`      // while event consumers are connected
	IdleInterval Duration `yaml:"idle_interval" validate:"gte=0"` // without consumers
	// RetainOnFailure keeps a failing source's previous contribution
	RetainOnFailure bool `yaml:"retain_on_failure"`
}

// DisplayConfig holds the initial display options
type DisplayConfig struct {
	Apps     bool `yaml:"apps"`
	Networks bool `yaml:"networks"`
}

// Options converts to domain display options
func (d DisplayConfig) Options() domain.DisplayOptions {
	return domain.DisplayOptions{Apps: d.Apps, Networks: d.Networks}
}

// HTTPConfig holds the API listener settings
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=auto console json"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // ":memory:" keeps the snapshot mirror in memory
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
