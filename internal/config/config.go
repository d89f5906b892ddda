// Package config loads the stream catalogue served by dash2hls.
package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agleyzer/dash2hls/internal/parser"
	"github.com/agleyzer/dash2hls/internal/stream"
	"gopkg.in/yaml.v3"
)

// Config is the serve-mode configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port int `yaml:"port"`

	// DefaultCount is the playlist window length when a request omits count.
	DefaultCount int `yaml:"default_count"`

	// MaxCount caps the window length a request may ask for.
	MaxCount int `yaml:"max_count"`

	// Fetch controls manifest retrieval.
	Fetch FetchConfig `yaml:"fetch"`

	// Streams maps a stream name to its source.
	Streams map[string]StreamConfig `yaml:"streams"`
}

// FetchConfig controls manifest retrieval.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	UserAgent   string        `yaml:"user_agent"`
	MaxBodySize int64         `yaml:"max_body_size"`
}

// StreamConfig describes one named stream.
type StreamConfig struct {
	// Title is shown in the stream listing.
	Title string `yaml:"title"`

	// URL of the manifest. Either URL or Connections must be set.
	URL string `yaml:"url"`

	// Connections offered for the stream; the first matching Format is used.
	Connections []stream.Connection `yaml:"connections"`

	// Format is auto, dash or hls.
	Format string `yaml:"format"`

	// Allow lists acceptable DASH representation ids.
	Allow []string `yaml:"allow"`

	// MaxBandwidth caps HLS variant selection in bits per second.
	MaxBandwidth int `yaml:"max_bandwidth"`
}

var streamName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		DefaultCount: 6,
		MaxCount:     1000,
		Fetch: FetchConfig{
			Timeout:     30 * time.Second,
			Retries:     2,
			UserAgent:   "dash2hls/1.0",
			MaxBodySize: 8 << 20,
		},
		Streams: map[string]StreamConfig{},
	}
}

// LoadConfigFile loads configuration from a YAML file
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, "port must be between 1 and 65535")
	}

	if c.DefaultCount < 1 {
		errors = append(errors, "default_count must be at least 1")
	}

	if c.MaxCount < c.DefaultCount {
		errors = append(errors, "max_count must not be below default_count")
	}

	if c.Fetch.Retries < 0 {
		errors = append(errors, "fetch retries cannot be negative")
	}

	if c.Fetch.MaxBodySize < 0 {
		errors = append(errors, "fetch max_body_size cannot be negative")
	}

	if len(c.Streams) == 0 {
		errors = append(errors, "at least one stream is required")
	}

	for _, name := range c.StreamNames() {
		if err := c.Streams[name].Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("stream %q: %v", name, err))
		}
		if !streamName.MatchString(name) {
			errors = append(errors, fmt.Sprintf("stream %q: name may only contain letters, digits, '-' and '_'", name))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Validate checks if a stream configuration is valid
func (s StreamConfig) Validate() error {
	var errors []string

	format, err := parser.ParseFormat(s.Format)
	if err != nil {
		errors = append(errors, err.Error())
	}

	if s.URL == "" && len(s.Connections) == 0 {
		errors = append(errors, "url or connections is required")
	} else if s.URL == "" {
		if _, ok := stream.SelectConnection(s.Connections, format); !ok {
			errors = append(errors, fmt.Sprintf("no connection with transfer format %q", format))
		}
	}

	if format == parser.FormatDASH && len(s.Allow) == 0 {
		errors = append(errors, "allow is required for dash streams")
	}

	if s.MaxBandwidth < 0 {
		errors = append(errors, "max_bandwidth cannot be negative")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}

// Source converts the stream configuration into a resolvable source.
func (s StreamConfig) Source() (stream.Source, error) {
	format, err := parser.ParseFormat(s.Format)
	if err != nil {
		return stream.Source{}, err
	}

	url := s.URL
	if url == "" {
		conn, ok := stream.SelectConnection(s.Connections, format)
		if !ok {
			return stream.Source{}, fmt.Errorf("no connection with transfer format %q", format)
		}
		url = conn.Href
		if format == parser.FormatAuto {
			if f, err := parser.ParseFormat(conn.TransferFormat); err == nil {
				format = f
			}
		}
	}

	return stream.Source{
		URL:          url,
		Format:       format,
		Allow:        s.Allow,
		MaxBandwidth: s.MaxBandwidth,
	}, nil
}

// StreamNames returns the configured stream names in sorted order.
func (c *Config) StreamNames() []string {
	names := make([]string, 0, len(c.Streams))
	for name := range c.Streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
