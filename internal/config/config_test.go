package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PROVIDER", "ACCESS_KEY_ID", "ACCESS_KEY_SECRET", "REGION", "SECURITY_GROUP_ID",
		"RULE_DESCRIPTION", "API_TIMEOUT", "FILE_SHIM", "LOOKUP_URL", "LOOKUP_TIMEOUT",
		"LOOKUP_FAMILY", "SYNC_MIN_INTERVAL", "SYNC_MAX_INTERVAL", "SYNC_ERROR_BACKOFF",
		"STATUS_ADDR", "STATUS_TOKEN", "LOG_LEVEL", "LOG_FORMAT",
	} {
		if v, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, v) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderAliyun, cfg.Cloud.Provider)
	assert.Equal(t, "home", cfg.Cloud.RuleDescription)
	assert.Equal(t, 30*time.Second, cfg.Cloud.APITimeout)
	assert.Equal(t, DefaultLookupURL, cfg.Lookup.URL)
	assert.Equal(t, 10*time.Second, cfg.Lookup.Timeout)
	assert.Equal(t, "any", cfg.Lookup.Family)
	assert.Equal(t, 60*time.Second, cfg.Schedule.MinInterval)
	assert.Equal(t, 600*time.Second, cfg.Schedule.MaxInterval)
	assert.Equal(t, 600*time.Second, cfg.Schedule.ErrorBackoff)
	assert.Equal(t, "", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "cn-hangzhou", cfg.Cloud.RegionOrDefault())
}

func TestLoad_AllEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "aws")
	t.Setenv("ACCESS_KEY_ID", "AKID")
	t.Setenv("ACCESS_KEY_SECRET", "secret")
	t.Setenv("REGION", "eu-west-1")
	t.Setenv("SECURITY_GROUP_ID", "sg-0123")
	t.Setenv("RULE_DESCRIPTION", "office")
	t.Setenv("LOOKUP_URL", "https://api.ipify.org")
	t.Setenv("SYNC_MIN_INTERVAL", "2m")
	t.Setenv("SYNC_MAX_INTERVAL", "5m")
	t.Setenv("STATUS_ADDR", ":9090")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderAWS, cfg.Cloud.ProviderName())
	assert.Equal(t, "eu-west-1", cfg.Cloud.RegionOrDefault())
	assert.Equal(t, "office", cfg.Cloud.Description())
	assert.Equal(t, "https://api.ipify.org", cfg.Lookup.URL)
	assert.Equal(t, 2*time.Minute, cfg.Schedule.MinInterval)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.MaxInterval)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("SYNC_ERROR_BACKOFF", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			Provider:        ProviderAliyun,
			AccessKeyID:     "id",
			AccessKeySecret: "secret",
			SecurityGroupID: "sg-1",
			RuleDescription: "home",
			APITimeout:      30 * time.Second,
		},
		Lookup:   LookupConfig{URL: DefaultLookupURL, Timeout: 10 * time.Second, Family: "any"},
		Schedule: ScheduleConfig{MinInterval: time.Minute, MaxInterval: 10 * time.Minute, ErrorBackoff: 10 * time.Minute},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing group", func(c *Config) { c.Cloud.SecurityGroupID = "" }, true},
		{"aliyun without secret", func(c *Config) { c.Cloud.AccessKeySecret = "" }, true},
		{"aws default chain", func(c *Config) {
			c.Cloud.Provider = ProviderAWS
			c.Cloud.AccessKeyID = ""
			c.Cloud.AccessKeySecret = ""
		}, false},
		{"aws half credentials", func(c *Config) {
			c.Cloud.Provider = ProviderAWS
			c.Cloud.AccessKeySecret = ""
		}, true},
		{"file shim needs no credentials", func(c *Config) {
			c.Cloud.AccessKeyID = ""
			c.Cloud.AccessKeySecret = ""
			c.Cloud.FileShim = "rules.json"
		}, false},
		{"file provider without path", func(c *Config) { c.Cloud.Provider = ProviderFile }, true},
		{"unknown provider", func(c *Config) { c.Cloud.Provider = "gcp" }, true},
		{"zero api timeout", func(c *Config) { c.Cloud.APITimeout = 0 }, true},
		{"empty lookup url", func(c *Config) { c.Lookup.URL = "" }, true},
		{"bad family", func(c *Config) { c.Lookup.Family = "ipv5" }, true},
		{"max below min", func(c *Config) { c.Schedule.MaxInterval = 30 * time.Second }, true},
		{"min equals max", func(c *Config) { c.Schedule.MaxInterval = c.Schedule.MinInterval }, false},
		{"zero backoff", func(c *Config) { c.Schedule.ErrorBackoff = 0 }, true},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProviderName_FileShimOverrides(t *testing.T) {
	c := CloudConfig{Provider: "AWS", FileShim: "/tmp/rules.json"}
	assert.Equal(t, ProviderFile, c.ProviderName())
	assert.Equal(t, "", c.RegionOrDefault())

	c.FileShim = ""
	assert.Equal(t, ProviderAWS, c.ProviderName())
	assert.Equal(t, "us-east-1", c.RegionOrDefault())
}
