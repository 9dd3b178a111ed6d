package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/config"
)

// NewLogger creates a zerolog.Logger writing to stdout, tagged with the
// security group and provider from the config.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return New(os.Stdout, cfg)
}

// New creates a logger writing to w.
func New(w io.Writer, cfg *config.Config) zerolog.Logger {
	if strings.EqualFold(cfg.Log.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).With().Timestamp().Str("service", "homesync")
	if provider := cfg.Cloud.ProviderName(); provider != "" {
		ctx = ctx.Str("provider", provider)
	}
	if region := cfg.Cloud.RegionOrDefault(); region != "" {
		ctx = ctx.Str("region", region)
	}
	if cfg.Cloud.SecurityGroupID != "" {
		ctx = ctx.Str("group_id", cfg.Cloud.SecurityGroupID)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
