package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/modelscout/internal/app"
	"github.com/okian/modelscout/internal/adapters/source"
	"github.com/okian/modelscout/internal/config"
	"github.com/okian/modelscout/internal/domain/scoring"
	"github.com/okian/modelscout/pkg/logger"
)

var version = "dev"

var errUsage = errors.New("usage")

// cfgKey carries the loaded configuration from the root command to
// subcommands.
type cfgKey struct{}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "modelscout",
		Short: "Recommend LLMs for a task from a snapshot catalog",
		Long: `modelscout ingests model catalog snapshots, keeps them in a local
warehouse and ranks models for a free-text task description.

Configuration is read from defaults, an optional YAML file (--config or
MODELSCOUT_CONFIG) and MODELSCOUT_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv("MODELSCOUT_CONFIG", configPath); err != nil {
					return fmt.Errorf("set config path: %w", err)
				}
			}
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := initLogging(cfg); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey{}, cfg))
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", errUsage, err)
	})

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newIngestCommand())
	cmd.AddCommand(newRecommendCommand())
	cmd.AddCommand(newModelsCommand())

	return cmd
}

func initLogging(cfg *config.Config) error {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(os.Stderr)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

func configFrom(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}
	return config.New(cmd.Context())
}

// newService builds a service from configuration. The caller starts it.
func newService(cfg *config.Config, opts ...service.Option) (*service.Service, error) {
	policy, err := scoring.ParseMissingPolicy(cfg.MissingPolicy)
	if err != nil {
		return nil, err
	}
	log := logger.Get()

	primary := source.NewHTTPSource(
		source.WithEndpoint(cfg.UpstreamEndpoint),
		source.WithKeyEnv(cfg.APIKeyEnv),
		source.WithEnvFile(cfg.EnvFile),
		source.WithTimeout(cfg.FetchTimeout()),
		source.WithMaxTries(cfg.FetchMaxTries),
		source.WithLogger(log.Named("source")),
	)

	base := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithStoreDriver(cfg.StoreDriver, cfg.DBPath),
		service.WithSnapshotDir(cfg.SnapshotDir),
		service.WithPrimarySource(primary),
		service.WithFallbackSource(source.NewFixtureSource(cfg.FixturePath)),
		service.WithDefaultTopK(cfg.DefaultTopK),
		service.WithMaxTopK(cfg.MaxTopK),
		service.WithMissingPolicy(policy),
		service.WithMaxAgeHours(cfg.MaxAgeHours),
	}
	return service.New(append(base, opts...)...), nil
}
