package commands

import (
	"fmt"
	"os"

	"github.com/benvon/comment-pulse/internal/config"
	"github.com/benvon/comment-pulse/internal/database"
	"github.com/benvon/comment-pulse/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds the flags shared by every subcommand
type Options struct {
	EnvFile   string
	Debug     bool
	LogFormat string
}

// AddFlags registers the shared flags on the root command
func (o *Options) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.EnvFile, "env-file", config.EnvFilePath(), "dotenv file to load before reading the environment")
	cmd.PersistentFlags().BoolVar(&o.Debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", string(logger.FormatAuto), "log format: json, console or auto")
}

func (o *Options) loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(o.EnvFile); err != nil {
		return nil, err
	}
	return config.LoadDefaults(), nil
}

func (o *Options) newLogger() (*zap.Logger, error) {
	l, err := logger.New(logger.Format(o.LogFormat), o.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

// openDB connects to the configured database. The returned func closes it.
func openDB(cfg *config.Config) (*database.DB, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}, nil
}
