package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/calacuda/auto-desk/internal/ports"
	"github.com/calacuda/auto-desk/internal/sentinel"
	"github.com/spf13/cobra"
)

var (
	socketPath string
	traceDir   string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "port-sentinel",
	Short: "Report TCP socket state changes to auto-desk",
	Long: `port-sentinel enables the inet_sock_set_state ftrace event, polls the
trace buffer and forwards each connection state change to the auto-desk ports
socket. It needs write access to the tracing filesystem, so it usually runs
as root.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&socketPath, "socket", "s", ports.DefaultSocket, "auto-desk ports socket")
	rootCmd.Flags().StringVar(&traceDir, "trace-dir", sentinel.TraceDir, "tracefs mount point")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	if debug || os.Getenv("DEBUG") == "true" {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	t := sentinel.NewTracer(socketPath)
	t.Dir = traceDir
	if err := t.Prepare(); err != nil {
		return fmt.Errorf("could not prepare tracer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("port sentinel: tracing", "dir", traceDir, "socket", socketPath)
	return t.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
