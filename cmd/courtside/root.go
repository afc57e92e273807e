package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/courtside/internal/config"
	logpkg "github.com/kailas-cloud/courtside/internal/logger"
	"github.com/kailas-cloud/courtside/internal/version"
)

// NewRootCmd creates the root courtside command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "courtside",
		Short:         "Basketball shoe review retrieval",
		Long:          "courtside indexes basketball shoe reviews and routes questions between the review store and live lookups.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (overrides --env lookup)")
	root.PersistentFlags().String("env", config.GetEnv(), "environment: local, dev, docker, prod")

	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSearchCmd(),
		newRouteCmd(),
		newStatsCmd(),
		newVersionCmd(),
	)

	return root
}

// setup loads configuration and builds the process logger from the global flags.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	env, _ := cmd.Flags().GetString("env")
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level,
		zap.String("version", version.Version),
		zap.String("command", cmd.Name()),
	)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// bootstrap runs setup and wires the application.
func bootstrap(cmd *cobra.Command) (*app, func(), error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("wiring app: %w", err)
	}
	cleanup := func() {
		a.close()
		_ = logger.Sync()
	}
	return a, cleanup, nil
}
