// Package server implements the auto-desk command socket.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/calacuda/auto-desk/internal/dispatch"
)

type Server struct {
	SocketPath string

	loop    Loop
	effects Effects

	stopOnce sync.Once
	stop     chan struct{}
}

// New returns a server for socketPath. loop may be nil when hooks are
// disabled, in which case hook commands report the loop as stopped.
func New(socketPath string, loop Loop, effects Effects) *Server {
	return &Server{
		SocketPath: socketPath,
		loop:       loop,
		effects:    effects,
		stop:       make(chan struct{}),
	}
}

// Stopped is closed once an exit request has been handled.
func (s *Server) Stopped() <-chan struct{} {
	return s.stop
}

// Run serves commands until ctx is cancelled or an exit request arrives. On
// the way out it tells the dispatch loop to exit and removes the socket.
func (s *Server) Run(ctx context.Context) error {
	// remove existing file if it already exists
	_ = os.Remove(s.SocketPath)

	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("command server: listen unix socket: %w", err)
	}
	slog.Info("command server: listening", "socket", s.SocketPath)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.stop:
		}
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("command server: closing socket", "error", err)
		}
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.stopping() || errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Warn("command server: accepting connection", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serve(ctx, conn)
		}()
	}

	wg.Wait()
	s.shutdown()
	return nil
}

func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("command server: closing socket conn", "error", err)
		} else {
			slog.Debug("command server: socket conn closed")
		}
	}()

	buf, err := io.ReadAll(conn)
	if err != nil {
		slog.Error("command server: reading request", "error", err)
		return
	}

	r, stop := s.handle(ctx, string(buf))
	if _, err := conn.Write(r.Encode()); err != nil {
		slog.Error("command server: writing reply", "error", err)
	}

	if stop {
		s.stopOnce.Do(func() { close(s.stop) })
	}
}

func (s *Server) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *Server) shutdown() {
	if s.loop != nil {
		select {
		case s.loop.Commands() <- dispatch.Exit:
			slog.Info("command server: dispatch loop told to exit")
		case <-s.loop.Done():
		}
	}

	if err := os.Remove(s.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("command server: removing socket", "error", err)
	}
	slog.Info("command server: stopped")
}
