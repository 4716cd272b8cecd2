// Package dispatch runs the loop that owns the live hook registry and fires
// hooks when an event source reports a change.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/calacuda/auto-desk/internal/events"
	"github.com/calacuda/auto-desk/internal/hooks"
)

// Source reports one context per observed change.
type Source interface {
	Run(ctx context.Context, out chan<- events.Context)
}

// BatchSource reports every change found in one scan at once.
type BatchSource interface {
	Run(ctx context.Context, out chan<- []events.Context)
}

// Sources holds one source per event kind. Nil sources are not started.
type Sources struct {
	Wifi      Source
	Network   Source
	Backlight Source
	USB       Source
	Bluetooth Source
	Ports     BatchSource
}

type Executor interface {
	Execute(c events.Context, hs []hooks.Hook)
}

type Command int

const (
	// Exit stops the loop and cancels every source.
	Exit Command = iota
)

const sourceBuffer = 16

type Loop struct {
	db       *hooks.DB
	sources  Sources
	exec     Executor
	control  chan *hooks.DB
	commands chan Command
	done     chan struct{}
}

func New(seed *hooks.DB, sources Sources, exec Executor) *Loop {
	if seed == nil {
		seed = hooks.NewDB()
	}
	return &Loop{
		db:       seed,
		sources:  sources,
		exec:     exec,
		control:  make(chan *hooks.DB),
		commands: make(chan Command),
		done:     make(chan struct{}),
	}
}

// Control accepts registries to merge into the live one.
func (l *Loop) Control() chan<- *hooks.DB {
	return l.control
}

func (l *Loop) Commands() chan<- Command {
	return l.commands
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run starts every source and services them until Exit is received or ctx is
// cancelled. Sources are cancelled on the way out but never waited for, and
// hooks that are still running are left alone.
func (l *Loop) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer close(l.done)
	defer cancel()

	var (
		wifi      = startSource(ctx, l.sources.Wifi)
		network   = startSource(ctx, l.sources.Network)
		backlight = startSource(ctx, l.sources.Backlight)
		usb       = startSource(ctx, l.sources.USB)
		bluetooth = startSource(ctx, l.sources.Bluetooth)
		ports     <-chan []events.Context
	)
	if l.sources.Ports != nil {
		ch := make(chan []events.Context, sourceBuffer)
		go l.sources.Ports.Run(ctx, ch)
		ports = ch
	}
	slog.Info("dispatch loop: running", "hooks", l.db.Len())

	for {
		select {
		case <-ctx.Done():
			slog.Info("dispatch loop: context cancelled, draining")
			return

		case cmd := <-l.commands:
			if cmd == Exit {
				slog.Info("dispatch loop: exit requested, draining")
				return
			}
			slog.Warn("dispatch loop: unknown command", "command", cmd)

		case db := <-l.control:
			n := l.db.Merge(db)
			slog.Info("dispatch loop: merged hooks", "added", n, "total", l.db.Len())

		case c := <-wifi:
			l.fire(hooks.WifiChange, c)
		case c := <-network:
			l.fire(hooks.NetworkToggle, c)
		case c := <-backlight:
			l.fire(hooks.Backlight, c)
		case c := <-usb:
			l.fire(hooks.NewUSBDevice, c)
		case c := <-bluetooth:
			l.fire(hooks.BluetoothDevice, c)
		case cs := <-ports:
			for _, c := range cs {
				l.fire(hooks.PortStatusChange, c)
			}
		}
	}
}

func (l *Loop) fire(k hooks.EventKind, c events.Context) {
	hs := l.db.Lookup(k)
	slog.Debug("dispatch loop: event", "kind", k, "context", c, "hooks", len(hs))
	if len(hs) == 0 {
		return
	}
	l.exec.Execute(c, hs)
}

// startSource runs s in its own goroutine. A nil source yields a nil channel,
// which is never ready.
func startSource(ctx context.Context, s Source) <-chan events.Context {
	if s == nil {
		return nil
	}
	ch := make(chan events.Context, sourceBuffer)
	go s.Run(ctx, ch)
	return ch
}
