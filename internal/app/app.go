// Package app wires the auto-desk daemon together: command server, event
// sources, dispatch loop and config reloads.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/calacuda/auto-desk/internal/config"
	"github.com/calacuda/auto-desk/internal/dispatch"
	"github.com/calacuda/auto-desk/internal/effect"
	"github.com/calacuda/auto-desk/internal/hooks"
	"github.com/calacuda/auto-desk/internal/server"
)

type App struct {
	Cfg     *config.Config
	Effects *effect.Effector

	// newSources builds the event sources; replaced in tests.
	newSources func(cfg *config.Config) (dispatch.Sources, func())
	executor   dispatch.Executor
}

func NewApp(cfg *config.Config) *App {
	return &App{
		Cfg:        cfg,
		Effects:    effect.New(effect.ExecRunner{}),
		newSources: hostSources,
		executor:   hooks.NewExecutor(),
	}
}

// Start runs the daemon until ctx is cancelled or a client asks the server to
// exit.
func (a *App) Start(ctx context.Context) error {
	sock := a.Cfg.Server.ListenSocket

	lock, err := server.Lock(sock)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Error("releasing instance lock", "error", err)
		}
	}()

	clearSockets(sock, a.Cfg.Hooks.PortsSocket)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var loop server.Loop
	if a.Cfg.Hooks.Listen {
		l, closeSources := a.startLoop(ctx)
		defer closeSources()
		loop = l
	} else {
		slog.Info("hook listener disabled in config")
	}

	srv := server.New(sock, loop, a.Effects)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("running command server: %w", err)
	}
	return nil
}

func (a *App) startLoop(ctx context.Context) (*dispatch.Loop, func()) {
	if err := a.Cfg.Validate(); err != nil {
		slog.Warn("config has invalid hooks; they will be skipped", "error", err)
	}

	sources, closeSources := a.newSources(a.Cfg)
	loop := dispatch.New(hooks.NewDBFrom(a.Cfg.Hooks.Hooks), sources, a.executor)
	go loop.Run(ctx)

	go func() {
		if err := a.watchConfig(ctx, loop); err != nil {
			slog.Error("config watcher stopped", "error", err)
		}
	}()

	return loop, closeSources
}

// clearSockets removes socket files left by a daemon that did not exit
// cleanly. Callers must hold the instance lock.
func clearSockets(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("removing stale socket", "path", p, "error", err)
		}
	}
}
