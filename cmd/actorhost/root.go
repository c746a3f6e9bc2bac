package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/actorkit/pkg/config"
	"github.com/dmitrymomot/actorkit/pkg/engine"
	"github.com/dmitrymomot/actorkit/pkg/logger"
	"github.com/dmitrymomot/actorkit/pkg/requestid"
)

type globalFlags struct {
	envFiles []string
	backend  string
}

func rootCommand() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "actorhost",
		Short:         "Hosts billing entity actors and their reminders",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv files to load before reading the environment")
	cmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "store backend, overrides STORE_BACKEND")

	cmd.AddCommand(
		serveCommand(flags),
		remindersCommand(flags),
		collectionCommand(flags),
		catalogCommand(),
	)
	return cmd
}

func (f *globalFlags) config() (engine.Config, error) {
	if len(f.envFiles) > 0 {
		if err := config.LoadEnv(f.envFiles...); err != nil {
			return engine.Config{}, err
		}
	}
	var cfg engine.Config
	if err := config.Load(&cfg); err != nil {
		return engine.Config{}, err
	}
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	return cfg, nil
}

func newLogger(cfg engine.Config) *slog.Logger {
	log := logger.New(
		logger.FromConfig(cfg.Log),
		logger.WithContextExtractors(requestid.LogExtractor()),
	)
	logger.SetAsDefault(log)
	return log
}

// openEngine builds an engine for one-shot commands. Nothing is started.
func (f *globalFlags) openEngine(ctx context.Context) (*engine.Engine, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, cfg, engine.WithLogger(newLogger(cfg)))
}
