// Package cli implements the agentecs-viz command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/extensivelabs/agentecs-viz/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	URL        string
	LogLevel   string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "agentecs-viz",
		Short: "Follow and inspect a running agent world",
		Long: `agentecs-viz connects to a world server, keeps a synchronized view of its
snapshots and history, and diffs world states offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.URL, "url", "", "server url (ws://, wss:// or quic://), overrides config")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error|silent, overrides config")

	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewDiffCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.URL != "" {
		cfg.URL = opts.URL
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
