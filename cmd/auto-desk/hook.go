package main

import (
	"strings"

	"github.com/calacuda/auto-desk/internal/hooks"
	"github.com/spf13/cobra"
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Manage hooks on the running daemon",
}

var hookAddCmd = &cobra.Command{
	Use:   "add <event-kind> <command...>",
	Short: "Register a hook until the daemon exits",
	Long: `Register a shell command to run whenever an event of the given kind fires.
Event context is exported to the command as environment variables.

Event kinds: ` + kindList() + `

Examples:
  auto-desk hook add backlight 'notify-send "backlight $new_backlight"'
  auto-desk hook add bluetooth-device 'logger "$event $device_adr"'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		r, err := c.AddHook(args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return report(r)
	},
}

var hookRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a hook (not implemented by the daemon yet)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		r, err := c.RemoveHook(args[0])
		if err != nil {
			return err
		}
		return report(r)
	},
}

var hookLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List hooks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		r, err := c.ListHooks()
		if err != nil {
			return err
		}
		return report(r)
	},
}

func init() {
	hookCmd.AddCommand(hookAddCmd, hookRmCmd, hookLsCmd)
	rootCmd.AddCommand(hookCmd)
}

func kindList() string {
	names := make([]string, 0, len(hooks.Kinds))
	for _, k := range hooks.Kinds {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
