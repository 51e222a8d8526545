package datasetcmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cardset/internal/config"
	"github.com/lehigh-university-libraries/cardset/internal/logging"
)

// Globals are the persistent flags shared by every dataset command
type Globals struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// loadConfig layers the config file, CARDSET_* variables and the global
// log flags. Command-specific flags are applied by the caller.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.LogFormat = g.LogFormat
	}
	return cfg, nil
}

// setupLogger installs the configured logger as the slog default and returns it
func setupLogger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, nil
}
