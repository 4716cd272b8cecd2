package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/calacuda/auto-desk/internal/dispatch"
	"github.com/calacuda/auto-desk/internal/hooks"
)

const ExitCommand = "SERVER-EXIT"

var errLoopStopped = errors.New("hook listener is not running")

// Loop is the part of the dispatch loop the server talks to.
type Loop interface {
	Control() chan<- *hooks.DB
	Commands() chan<- dispatch.Command
	Done() <-chan struct{}
}

type Effects interface {
	Do(ctx context.Context, name, args string) (bool, error)
}

// SplitRequest splits a request at its first space into command and
// argument string.
func SplitRequest(req string) (cmd, args string) {
	cmd, args, _ = strings.Cut(strings.TrimSpace(req), " ")
	return cmd, strings.TrimSpace(args)
}

// handle runs one command. stop is true for ExitCommand.
func (s *Server) handle(ctx context.Context, req string) (r Reply, stop bool) {
	cmd, args := SplitRequest(req)
	slog.Debug("command server: request", "cmd", cmd, "args", args)

	switch cmd {
	case ExitCommand:
		return ok("server exiting"), true
	case "add-hook":
		return s.addHook(ctx, args), false
	case "rm-hook":
		return s.rmHook(args), false
	case "ls-hook", "list-hook":
		return s.lsHook(), false
	}

	if s.effects != nil {
		handled, err := s.effects.Do(ctx, cmd, args)
		if handled {
			if err != nil {
				slog.Error("command server: effect failed", "cmd", cmd, "error", err)
				return fail(CodeEffectFailed, err), false
			}
			return ok(""), false
		}
	}

	slog.Warn("command server: got unknown command", "cmd", cmd)
	return fail(CodeUnknownCommand, fmt.Errorf("unknown command %q", cmd)), false
}

func (s *Server) addHook(ctx context.Context, args string) Reply {
	h, err := hooks.ParseHook(args)
	switch {
	case errors.Is(err, hooks.ErrMalformedHook):
		return fail(CodeMalformedHook, err)
	case errors.Is(err, hooks.ErrUnknownEvent):
		return fail(CodeUnknownEvent, err)
	case err != nil:
		return fail(CodeMalformedHook, err)
	}

	if s.loop == nil {
		return fail(CodeLoopStopped, errLoopStopped)
	}

	db := hooks.NewDB()
	if _, err := db.Add(h); err != nil {
		return fail(CodeUnknownEvent, err)
	}

	select {
	case s.loop.Control() <- db:
		slog.Info("command server: hook added", "event", h.Event, "exec", h.Exec)
		return ok("")
	case <-s.loop.Done():
		return fail(CodeLoopStopped, errLoopStopped)
	case <-ctx.Done():
		return fail(CodeLoopStopped, ctx.Err())
	}
}

// rmHook accepts the request but does not remove anything yet.
func (s *Server) rmHook(args string) Reply {
	slog.Warn("command server: rm-hook is not implemented; nothing removed", "args", args)
	return ok("")
}

// lsHook always answers with an empty listing; the live registry is owned by
// the dispatch loop and is not queried.
func (s *Server) lsHook() Reply {
	return ok("")
}
