package firewall

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bcnelson/homesync/internal/config"
)

// NewFromConfig creates the rule store selected by the cloud configuration.
func NewFromConfig(ctx context.Context, cfg config.CloudConfig, logger zerolog.Logger) (RuleStore, error) {
	switch cfg.ProviderName() {
	case config.ProviderFile:
		return NewFileShim(cfg.FileShim, logger), nil
	case config.ProviderAliyun:
		return NewAliyun(cfg.RegionOrDefault(), cfg.AccessKeyID, cfg.AccessKeySecret, cfg.APITimeout, logger)
	case config.ProviderAWS:
		return NewAWS(ctx, cfg.RegionOrDefault(), cfg.AccessKeyID, cfg.AccessKeySecret, cfg.APITimeout, logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}
