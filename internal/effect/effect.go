package effect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

var ErrMissingArg = errors.New("missing argument")

const defaultSessionProcess = "bspwm"

type Effector struct {
	r Runner
	// SessionProcess is killed by logout.
	SessionProcess string
}

func New(r Runner) *Effector {
	if r == nil {
		r = ExecRunner{}
	}
	return &Effector{r: r, SessionProcess: defaultSessionProcess}
}

type effectFunc func(e *Effector, ctx context.Context, args string) error

var effects = map[string]effectFunc{
	"open-here":   (*Effector).openHere,
	"inc-bl":      backlight("-inc"),
	"dec-bl":      backlight("-dec"),
	"add-monitor": (*Effector).addMonitor,
	"vol-up":      volume("+"),
	"vol-down":    volume("-"),
	"mute":        (*Effector).mute,
	"play/pause":  playerctl("play-pause"),
	"play-track":  playerctl("play"),
	"pause-track": playerctl("pause"),
	"stop-track":  playerctl("stop"),
	"next-track":  playerctl("next"),
	"last-track":  playerctl("previous"),
	"poweroff":    run("systemctl", "poweroff"),
	"hibernate":   run("systemctl", "hibernate"),
	"reboot":      run("systemctl", "reboot"),
	"sleep":       run("systemctl", "suspend-then-hibernate"),
	"suspend":     run("systemctl", "suspend-then-hibernate"),
	"lock":        run("loginctl", "lock-session"),
	"logout":      (*Effector).logout,
}

// Names lists every effect in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(effects))
}

func Has(name string) bool {
	_, ok := effects[name]
	return ok
}

// Do runs the named effect. handled is false when name is not an effect.
func (e *Effector) Do(ctx context.Context, name, args string) (handled bool, err error) {
	f, ok := effects[name]
	if !ok {
		return false, nil
	}

	slog.Info("effect: running", "effect", name, "args", args)
	if err := f(e, ctx, strings.TrimSpace(args)); err != nil {
		return true, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

func (e *Effector) openHere(_ context.Context, prog string) error {
	if prog == "" {
		return fmt.Errorf("%w: program", ErrMissingArg)
	}
	if strings.HasSuffix(prog, ".desktop") {
		return e.r.Start("gtk-launch", prog)
	}
	return e.r.Start("sh", "-c", prog)
}

func (e *Effector) addMonitor(ctx context.Context, output string) error {
	if output == "" {
		return fmt.Errorf("%w: output name", ErrMissingArg)
	}
	_, err := e.r.Run(ctx, "xrandr", "--output", output, "--auto")
	return err
}

func (e *Effector) mute(ctx context.Context, _ string) error {
	_, err := e.r.Run(ctx, "amixer", "-D", "pulse", "set", "Master", "1+", "toggle")
	return err
}

func (e *Effector) logout(ctx context.Context, _ string) error {
	_, err := e.r.Run(ctx, "pkill", e.SessionProcess)
	return err
}

func backlight(dir string) effectFunc {
	return func(e *Effector, ctx context.Context, amount string) error {
		if amount == "" {
			return fmt.Errorf("%w: amount", ErrMissingArg)
		}
		_, err := e.r.Run(ctx, "xbacklight", dir, amount)
		return err
	}
}

func volume(sign string) effectFunc {
	return func(e *Effector, ctx context.Context, amount string) error {
		if amount == "" {
			return fmt.Errorf("%w: amount", ErrMissingArg)
		}
		_, err := e.r.Run(ctx, "amixer", "set", "Master", amount+"%"+sign)
		return err
	}
}

func playerctl(arg string) effectFunc {
	return run("playerctl", arg)
}

func run(name string, args ...string) effectFunc {
	return func(e *Effector, ctx context.Context, _ string) error {
		_, err := e.r.Run(ctx, name, args...)
		return err
	}
}
