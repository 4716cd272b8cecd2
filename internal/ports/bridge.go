// Package ports receives connection records from the port sentinel and turns
// them into port-status-change contexts.
package ports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/calacuda/auto-desk/internal/events"
	"github.com/calacuda/auto-desk/internal/sentinel"
)

const DefaultSocket = "/tmp/auto-desk.ports"

var webPorts = map[uint16]bool{80: true, 443: true}

type Bridge struct {
	SocketPath string
	// StopExecs lists executable names whose records are dropped.
	StopExecs map[string]struct{}
	// IgnoreWeb drops outgoing records to ports 80 and 443.
	IgnoreWeb bool
	Procs     ProcessTable
}

func NewBridge(socketPath string, stopExecs []string, ignoreWeb bool, procs ProcessTable) *Bridge {
	if socketPath == "" {
		socketPath = DefaultSocket
	}
	stop := make(map[string]struct{}, len(stopExecs))
	for _, e := range stopExecs {
		stop[e] = struct{}{}
	}
	return &Bridge{
		SocketPath: socketPath,
		StopExecs:  stop,
		IgnoreWeb:  ignoreWeb,
		Procs:      procs,
	}
}

// Run accepts sentinel connections until ctx is cancelled. Each connection
// carries a batch of records and yields at most one send on out.
func (b *Bridge) Run(ctx context.Context, out chan<- []events.Context) {
	// remove stale socket left by a previous run
	_ = os.Remove(b.SocketPath)

	ln, err := net.Listen("unix", b.SocketPath)
	if err != nil {
		slog.Error("ports source: disabled; could not listen", "socket", b.SocketPath, "error", err)
		return
	}
	slog.Info("ports source: started", "socket", b.SocketPath)

	go func() {
		<-ctx.Done()
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("ports source: closing listener", "error", err)
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Warn("ports source: accepting connection", "error", err)
			continue
		}

		payload, err := readAll(conn)
		if err != nil {
			slog.Error("ports source: reading sentinel payload", "error", err)
			continue
		}

		cs := b.Contexts(payload)
		if len(cs) == 0 {
			continue
		}

		select {
		case out <- cs:
		case <-ctx.Done():
			return
		}
	}
}

func readAll(conn net.Conn) (string, error) {
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("ports source: closing socket conn", "error", err)
		}
	}()

	buf, err := io.ReadAll(conn)
	return string(buf), err
}

// Contexts decodes a newline separated batch and returns one context per
// record that passes the filters. Bad records are logged and skipped.
func (b *Bridge) Contexts(payload string) []events.Context {
	states, err := b.Procs.PortStates()
	if err != nil {
		slog.Warn("ports source: reading tcp states", "error", err)
	}

	var out []events.Context
	for _, line := range strings.Split(payload, "\n") {
		if line == "" {
			continue
		}

		rec, err := sentinel.ParseLine(line)
		if err != nil {
			var te *sentinel.TracerError
			if errors.As(err, &te) {
				slog.Error("ports source: sentinel reported an error", "msg", te.Msg)
			} else {
				slog.Warn("ports source: skipping record", "error", err)
			}
			continue
		}

		c, ok := b.recordContext(rec, states)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (b *Bridge) recordContext(rec sentinel.Record, states map[uint16]string) (events.Context, bool) {
	exe, err := b.Procs.Executable(rec.PID)
	if err != nil {
		slog.Debug("ports source: unresolved executable", "pid", rec.PID, "error", err)
		exe = ""
	}

	if _, stop := b.StopExecs[exe]; stop && exe != "" {
		return nil, false
	}
	if b.IgnoreWeb && rec.Direction == sentinel.Outgoing && webPorts[rec.RemotePort] {
		return nil, false
	}

	state, ok := states[rec.LocalPort]
	if !ok {
		state = closedState
	}

	return events.Context{
		"local_adr":            rec.LocalIP,
		"remote_adr":           rec.RemoteIP,
		"state":                state,
		"executable":           exe,
		"pid":                  strconv.Itoa(rec.PID),
		"connection_direction": string(rec.Direction),
		"local_port":           strconv.Itoa(int(rec.LocalPort)),
		"remote_port":          strconv.Itoa(int(rec.RemotePort)),
	}, true
}
