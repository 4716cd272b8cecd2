package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/calacuda/auto-desk/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "auto-desk",
	Short: "Desktop automation daemon and client",
	Long: `auto-desk runs shell hooks when the desktop environment changes
(network, wifi, backlight, USB, bluetooth and socket activity) and answers
commands sent over a local socket.

Run "auto-desk start" from your session startup, then talk to the daemon
with the other subcommands.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug || os.Getenv("DEBUG") == "true" {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $XDG_CONFIG_HOME/auto-desk/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves and reads the config, creating a default file if none
// exists yet.
func loadConfig() (*config.Config, error) {
	path, err := config.Path(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	cfg, err := config.Init(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	slog.Debug("initiated config", "path", cfg.Path())
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
