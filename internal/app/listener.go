package app

import (
	"context"
	"log/slog"

	"github.com/calacuda/auto-desk/internal/config"
	"github.com/calacuda/auto-desk/internal/dispatch"
	"github.com/calacuda/auto-desk/internal/hooks"
)

// watchConfig forwards hooks added to the config file to the dispatch loop.
// Only (event, exec) pairs absent from the previous version are sent, so a
// reload never duplicates hooks that were already loaded.
func (a *App) watchConfig(ctx context.Context, loop *dispatch.Loop) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan *config.Config, 1)
	errc := make(chan error, 1)

	go func() {
		errc <- config.Watch(ctx, a.Cfg.Path(), updates)
	}()

	prev := a.Cfg
	for {
		select {
		case cfg := <-updates:
			added := config.NewHooks(prev, cfg)
			prev = cfg
			slog.Info("config file reloaded", "new_hooks", len(added))
			if len(added) == 0 {
				continue
			}

			select {
			case loop.Control() <- hooks.NewDBFrom(added):
			case <-loop.Done():
				return nil
			}

		case err := <-errc:
			return err

		case <-loop.Done():
			return nil
		}
	}
}
