package domain

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration loaded from a YAML file. Credentials
// may be overridden from ATLASSIAN_* environment variables at startup; the
// core never reads the environment itself.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Jira      JiraConfig      `yaml:"jira"`
}

// TransportConfig selects stdio or HTTP transport.
type TransportConfig struct {
	Type string     `yaml:"type"` // "stdio" or "http"
	HTTP HTTPConfig `yaml:"http,omitempty"`
}

// HTTPConfig defines HTTP transport settings, used when type is "http".
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// JiraConfig defines the Jira Cloud instance and its credentials.
type JiraConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`

	// MaxConcurrency bounds simultaneous outbound calls within one
	// invocation (bulk moves, relationship fan-out).
	MaxConcurrency int `yaml:"max_concurrency,omitempty"`

	// RequestTimeoutSeconds bounds each outbound HTTP call.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds,omitempty"`
}

const (
	defaultMaxConcurrency = 8
	defaultTimeoutSeconds = 30
)

// DefaultConfig returns a stdio configuration with empty credentials, the
// starting point when no config file exists and everything comes from the
// environment.
func DefaultConfig() *Config {
	cfg := &Config{Transport: TransportConfig{Type: "stdio"}}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads and validates configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid YAML syntax in configuration file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Transport.Type == "" {
		c.Transport.Type = "stdio"
	}
	if c.Jira.MaxConcurrency <= 0 {
		c.Jira.MaxConcurrency = defaultMaxConcurrency
	}
	if c.Jira.RequestTimeoutSeconds <= 0 {
		c.Jira.RequestTimeoutSeconds = defaultTimeoutSeconds
	}
}

// Validate checks the configuration for completeness and correctness,
// collecting every failure into one error.
func (c *Config) Validate() error {
	var errs []string

	switch c.Transport.Type {
	case "stdio":
	case "http":
		if c.Transport.HTTP.Host == "" {
			errs = append(errs, "http host is required when transport type is 'http'")
		}
		if c.Transport.HTTP.Port <= 0 || c.Transport.HTTP.Port > 65535 {
			errs = append(errs, fmt.Sprintf("invalid http port %d: must be between 1 and 65535", c.Transport.HTTP.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid transport type %q: must be 'stdio' or 'http'", c.Transport.Type))
	}

	if c.Jira.BaseURL == "" {
		errs = append(errs, "jira base_url is required")
	} else if parsed, err := url.Parse(c.Jira.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("jira base_url is invalid: %v", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, "jira base_url must use http or https scheme")
	} else if parsed.Host == "" {
		errs = append(errs, "jira base_url must include a host")
	}

	if c.Jira.Email == "" {
		errs = append(errs, "jira email is required")
	}
	if c.Jira.APIToken == "" {
		errs = append(errs, "jira api_token is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// NormalizedBaseURL returns the base URL without a trailing slash.
func (c *Config) NormalizedBaseURL() string {
	return strings.TrimRight(c.Jira.BaseURL, "/")
}
