package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"

	"github.com/bcnelson/homesync/internal/domain"
)

// Supported cloud providers.
const (
	ProviderAliyun = "aliyun"
	ProviderAWS    = "aws"
	ProviderFile   = "file"
)

// DefaultLookupURL is the plain-text public address endpoint.
const DefaultLookupURL = "http://members.3322.org/dyndns/getip"

// defaultRegions holds the region used when none is configured.
var defaultRegions = map[string]string{
	ProviderAliyun: "cn-hangzhou",
	ProviderAWS:    "us-east-1",
}

// Config holds all configuration for the application.
type Config struct {
	Cloud    CloudConfig
	Lookup   LookupConfig
	Schedule ScheduleConfig
	Server   ServerConfig
	Log      LogConfig
}

// CloudConfig holds the security group and provider credentials.
type CloudConfig struct {
	Provider        string        `env:"PROVIDER" envDefault:"aliyun"`
	AccessKeyID     string        `env:"ACCESS_KEY_ID"`
	AccessKeySecret string        `env:"ACCESS_KEY_SECRET"`
	Region          string        `env:"REGION"`
	SecurityGroupID string        `env:"SECURITY_GROUP_ID"`
	RuleDescription string        `env:"RULE_DESCRIPTION" envDefault:"home"`
	APITimeout      time.Duration `env:"API_TIMEOUT" envDefault:"30s"`
	FileShim        string        `env:"FILE_SHIM"` // Path to a JSON rule file (disables the real API)
}

// LookupConfig holds public address lookup configuration.
type LookupConfig struct {
	URL     string        `env:"LOOKUP_URL" envDefault:"http://members.3322.org/dyndns/getip"`
	Timeout time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"10s"`
	Family  string        `env:"LOOKUP_FAMILY" envDefault:"any"` // any, ipv4, ipv6
}

// ScheduleConfig holds the loop delays.
type ScheduleConfig struct {
	MinInterval  time.Duration `env:"SYNC_MIN_INTERVAL" envDefault:"60s"`
	MaxInterval  time.Duration `env:"SYNC_MAX_INTERVAL" envDefault:"600s"`
	ErrorBackoff time.Duration `env:"SYNC_ERROR_BACKOFF" envDefault:"600s"`
}

// ServerConfig holds the optional status server configuration.
type ServerConfig struct {
	Addr  string `env:"STATUS_ADDR"` // Empty disables the status server
	Token string `env:"STATUS_TOKEN"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"` // json or console
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(&cfg.Cloud); err != nil {
		return nil, fmt.Errorf("parsing cloud config: %w", err)
	}
	if err := env.Parse(&cfg.Lookup); err != nil {
		return nil, fmt.Errorf("parsing lookup config: %w", err)
	}
	if err := env.Parse(&cfg.Schedule); err != nil {
		return nil, fmt.Errorf("parsing schedule config: %w", err)
	}
	if err := env.Parse(&cfg.Server); err != nil {
		return nil, fmt.Errorf("parsing server config: %w", err)
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, fmt.Errorf("parsing log config: %w", err)
	}

	return cfg, nil
}

// ProviderName returns the effective provider. A file shim overrides PROVIDER.
func (c *CloudConfig) ProviderName() string {
	if c.FileShim != "" {
		return ProviderFile
	}
	return strings.ToLower(c.Provider)
}

// RegionOrDefault returns the configured region or the provider's default.
func (c *CloudConfig) RegionOrDefault() string {
	if c.Region != "" {
		return c.Region
	}
	return defaultRegions[c.ProviderName()]
}

// Description returns the home rule tag.
func (c *CloudConfig) Description() string {
	if c.RuleDescription == "" {
		return domain.DefaultRuleDescription
	}
	return c.RuleDescription
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Cloud.SecurityGroupID == "" {
		return fmt.Errorf("SECURITY_GROUP_ID is required")
	}

	switch c.Cloud.ProviderName() {
	case ProviderAliyun:
		// Aliyun has no ambient credential chain here
		if c.Cloud.AccessKeyID == "" || c.Cloud.AccessKeySecret == "" {
			return fmt.Errorf("ACCESS_KEY_ID and ACCESS_KEY_SECRET are required for provider %s (or set FILE_SHIM for testing)", ProviderAliyun)
		}
	case ProviderAWS:
		if (c.Cloud.AccessKeyID == "") != (c.Cloud.AccessKeySecret == "") {
			return fmt.Errorf("ACCESS_KEY_ID and ACCESS_KEY_SECRET must be set together")
		}
	case ProviderFile:
		if c.Cloud.FileShim == "" {
			return fmt.Errorf("FILE_SHIM is required for provider %s", ProviderFile)
		}
	default:
		return fmt.Errorf("unknown PROVIDER %q (want %s, %s or %s)", c.Cloud.Provider, ProviderAliyun, ProviderAWS, ProviderFile)
	}

	if c.Cloud.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}

	if c.Lookup.URL == "" {
		return fmt.Errorf("LOOKUP_URL is required")
	}
	if c.Lookup.Timeout <= 0 {
		return fmt.Errorf("LOOKUP_TIMEOUT must be positive")
	}
	switch strings.ToLower(c.Lookup.Family) {
	case "", "any", "ipv4", "ipv6":
	default:
		return fmt.Errorf("LOOKUP_FAMILY must be any, ipv4 or ipv6, got %q", c.Lookup.Family)
	}

	if c.Schedule.MinInterval <= 0 {
		return fmt.Errorf("SYNC_MIN_INTERVAL must be positive")
	}
	if c.Schedule.MaxInterval < c.Schedule.MinInterval {
		return fmt.Errorf("SYNC_MAX_INTERVAL (%s) must not be less than SYNC_MIN_INTERVAL (%s)", c.Schedule.MaxInterval, c.Schedule.MinInterval)
	}
	if c.Schedule.ErrorBackoff <= 0 {
		return fmt.Errorf("SYNC_ERROR_BACKOFF must be positive")
	}

	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format)
	}

	return nil
}

// UseFileShim returns true if the file shim should be used instead of the real API.
func (c *Config) UseFileShim() bool {
	return c.Cloud.ProviderName() == ProviderFile
}
