package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bcnelson/homesync/internal/api"
	"github.com/bcnelson/homesync/internal/config"
	"github.com/bcnelson/homesync/internal/firewall"
	"github.com/bcnelson/homesync/internal/logging"
	"github.com/bcnelson/homesync/internal/metrics"
	"github.com/bcnelson/homesync/internal/resolver"
	"github.com/bcnelson/homesync/internal/service"
)

const shutdownTimeout = 30 * time.Second

type options struct {
	accessKeyID     string
	accessKeySecret string
	groupID         string
	region          string
	provider        string
	once            bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "homesync",
		Short:         "Keep the home rule of a cloud security group pointed at this network's public address",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to load configuration: %v\n", err)
				return err
			}
			applyFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "invalid configuration: %v\n", err)
				return err
			}

			logger := logging.NewLogger(cfg)
			if err := run(cmd.Context(), cfg, opts.once, logger); err != nil {
				logger.Error().Err(err).Msg("homesync exited")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.accessKeyID, "access-key-id", "", "Cloud access key ID (overrides ACCESS_KEY_ID)")
	flags.StringVar(&opts.accessKeySecret, "access-key-secret", "", "Cloud access key secret (overrides ACCESS_KEY_SECRET)")
	flags.StringVar(&opts.groupID, "group-id", "", "Security group to maintain (overrides SECURITY_GROUP_ID)")
	flags.StringVar(&opts.region, "region", "", "Cloud region (overrides REGION)")
	flags.StringVar(&opts.provider, "provider", "", "Cloud provider: aliyun, aws or file (overrides PROVIDER)")
	flags.BoolVar(&opts.once, "once", false, "Run a single cycle and exit")

	return cmd
}

// applyFlags copies explicitly set flags over the environment values.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) {
	flags := cmd.Flags()
	if flags.Changed("access-key-id") {
		cfg.Cloud.AccessKeyID = opts.accessKeyID
	}
	if flags.Changed("access-key-secret") {
		cfg.Cloud.AccessKeySecret = opts.accessKeySecret
	}
	if flags.Changed("group-id") {
		cfg.Cloud.SecurityGroupID = opts.groupID
	}
	if flags.Changed("region") {
		cfg.Cloud.Region = opts.region
	}
	if flags.Changed("provider") {
		cfg.Cloud.Provider = opts.provider
	}
}

func run(ctx context.Context, cfg *config.Config, once bool, logger zerolog.Logger) error {
	store, err := firewall.NewFromConfig(ctx, cfg.Cloud, logger)
	if err != nil {
		return fmt.Errorf("initializing %s rule store: %w", cfg.Cloud.ProviderName(), err)
	}

	res := resolver.New(cfg.Lookup.URL, cfg.Lookup.Timeout, resolver.Family(cfg.Lookup.Family))
	rec := service.NewReconciler(store, cfg.Cloud.Description(), cfg.Cloud.APITimeout, logger)
	m := metrics.New()
	sched := service.NewScheduler(res, rec, cfg.Cloud.SecurityGroupID, cfg.Schedule, m, logger)

	if once {
		_, err := sched.RunOnce(ctx)
		return err
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.Server.Addr != "" {
		server = api.NewServer(cfg.Server.Addr, api.NewRouter(sched, m.Handler(), cfg.Server.Token, logger))
		go func() {
			logger.Info().Str("addr", cfg.Server.Addr).Msg("starting status server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	logger.Info().
		Dur("min_interval", cfg.Schedule.MinInterval).
		Dur("max_interval", cfg.Schedule.MaxInterval).
		Dur("error_backoff", cfg.Schedule.ErrorBackoff).
		Msg("starting homesync")

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	loopDone := make(chan error, 1)
	go func() { loopDone <- sched.Run(loopCtx) }()

	var runErr error
	select {
	case err := <-serverErr:
		runErr = fmt.Errorf("status server: %w", err)
		cancel()
		<-loopDone
	case <-loopDone:
	}

	if server != nil {
		logger.Info().Msg("shutting down status server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("status server forced to shutdown")
		}
	}

	logger.Info().Msg("homesync stopped")
	return runErr
}
