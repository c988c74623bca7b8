// Package cli implements the framegate command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"framegate/internal/config"
	"framegate/internal/logging"
)

type globalOptions struct {
	configPath string
	logLevel   string
}

func (o *globalOptions) load() (*config.Config, *logging.SlogLogger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, logging.New(cfg.Log.Level), nil
}

// NewRootCommand creates the framegate command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "framegate",
		Short: "Read-through proxy for fighting game frame data",
		Long: `framegate serves fighting game frame data over a small REST API.

Game details and frame data documents are fetched from the FAT project on
first use and kept in memory, so each document is downloaded once per
process.`,
		Example: `  # Serve with built-in defaults on :8080
  framegate serve

  # Serve with a config file and preload every game
  framegate serve --config framegate.yaml --warm

  # Check that a game's documents can be fetched
  framegate fetch sf6`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newGamesCommand(opts),
		newFetchCommand(opts),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute(version string) int {
	cmd := NewRootCommand(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		return 1
	}
	return 0
}
