package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/calacuda/auto-desk/internal/client"
	"github.com/calacuda/auto-desk/internal/effect"
	"github.com/calacuda/auto-desk/internal/server"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send a raw command to the daemon",
	Long: `Send a command to the running daemon and print its reply.

Available effects: ` + strings.Join(effect.Names(), ", ") + `

Examples:
  auto-desk send vol-up 5
  auto-desk send open-here firefox.desktop
  auto-desk send add-monitor HDMI-1`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(args[0], args[1:]...)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(server.ExitCommand)
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch <program> [args...]",
	Short: "Launch a program (or .desktop entry) detached from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send("open-here", args...)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd, stopCmd, launchCmd)
}

func newClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Server.ListenSocket), nil
}

// send prints the reply and turns an error code into a non-zero exit.
func send(command string, args ...string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	r, err := c.Send(command, args...)
	if err != nil {
		return err
	}
	return report(r)
}

func report(r server.Reply) error {
	client.Print(os.Stdout, r)
	if !r.OK() {
		return fmt.Errorf("daemon returned code %d", r.Code)
	}
	return nil
}
