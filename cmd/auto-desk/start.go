package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/calacuda/auto-desk/internal/app"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the auto-desk daemon",
	Long: `Run the auto-desk daemon in the foreground; meant to be run as a systemd
user unit or from your window manager's autostart.

The daemon serves the command socket and, when hooks.listen is true, watches
the host for changes and runs the configured hooks. Hooks added to the config
file while the daemon runs are picked up automatically.`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting auto-desk", "version", version, "socket", cfg.Server.ListenSocket, "hooks", len(cfg.Hooks.Hooks))
	return app.NewApp(cfg).Start(ctx)
}
