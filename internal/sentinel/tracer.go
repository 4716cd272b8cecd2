package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	TraceDir      = "/sys/kernel/tracing"
	traceEvent    = "inet_sock_set_state"
	traceInterval = 200 * time.Millisecond

	// ports below this are never reported
	minLocalPort = 7
)

var (
	portsRe = regexp.MustCompile(`sport=([0-9]+) dport=([0-9]+)`)
	addrsRe = regexp.MustCompile(` saddr=([^\s]+) daddr=([^\s]+)`)
	taskRe  = regexp.MustCompile(`(([^\s]+)*[^\s]+)-(([0-9]+)*[0-9]+)[ ]+\[`)
)

// Tracer reads inet_sock_set_state events from ftrace and forwards them to
// the auto-desk ports socket.
type Tracer struct {
	Dir        string
	SocketPath string
	Interval   time.Duration

	// LocalAddrs lists the addresses considered local. Defaults to the host's
	// interface addresses.
	LocalAddrs func() ([]string, error)
}

func NewTracer(socketPath string) *Tracer {
	return &Tracer{
		Dir:        TraceDir,
		SocketPath: socketPath,
		Interval:   traceInterval,
		LocalAddrs: InterfaceAddrs,
	}
}

// Prepare selects the socket state event, disables function tracing, turns
// tracing on and empties the buffer.
func (t *Tracer) Prepare() error {
	steps := []struct {
		file, val, desc string
	}{
		{"set_event", traceEvent + "\n", "event selector"},
		{"current_tracer", "nop", "tracer selector"},
		{"tracing_on", "1", "tracer enable"},
	}
	for _, s := range steps {
		if err := os.WriteFile(filepath.Join(t.Dir, s.file), []byte(s.val), 0o644); err != nil {
			return fmt.Errorf("writing %s file: %w", s.desc, err)
		}
	}
	return t.clear()
}

// Run polls the trace buffer until ctx is cancelled.
func (t *Tracer) Run(ctx context.Context) error {
	tk := time.NewTicker(t.Interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
			for _, msg := range t.Poll() {
				if err := t.send(msg); err != nil {
					slog.Error("port sentinel: sending record", "error", err)
				}
			}
		}
	}
}

// Poll drains the trace buffer and returns the encoded lines to send.
func (t *Tracer) Poll() []string {
	lines, err := t.read()
	if err != nil {
		slog.Error("port sentinel: reading trace", "error", err)
		return []string{EncodeError(err.Error())}
	}

	local, err := t.localAddrs()
	if err != nil {
		slog.Error("port sentinel: listing local addresses", "error", err)
		return []string{EncodeError(err.Error())}
	}

	var msgs []string
	for _, l := range lines {
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		r, ok, err := ParseTrace(l, local)
		if err != nil {
			slog.Warn("port sentinel: parsing trace line", "line", l, "error", err)
			msgs = append(msgs, EncodeError(err.Error()))
			continue
		}
		if ok {
			msgs = append(msgs, Encode(r))
		}
	}
	return msgs
}

// ParseTrace extracts a record from one ftrace line. ok is false for lines
// that carry no task column or whose local port is reserved.
func ParseTrace(line string, local []string) (r Record, ok bool, err error) {
	task := taskRe.FindStringSubmatch(line)
	if task == nil {
		return Record{}, false, nil
	}
	pid, err := strconv.Atoi(task[3])
	if err != nil {
		return Record{}, false, fmt.Errorf("parsing pid %q: %w", task[3], err)
	}

	ports := portsRe.FindStringSubmatch(line)
	if ports == nil {
		return Record{}, false, fmt.Errorf("no ports could be found")
	}
	addrs := addrsRe.FindStringSubmatch(line)
	if addrs == nil {
		return Record{}, false, fmt.Errorf("no addresses could be found")
	}

	sport, dport := ports[1], ports[2]
	saddr, daddr := addrs[1], addrs[2]
	srcLocal, dstLocal := slices.Contains(local, saddr), slices.Contains(local, daddr)

	lip, lport, rip, rport, dir := daddr, dport, saddr, sport, Incoming
	switch {
	case srcLocal && dstLocal:
		lip, lport, rip, rport, dir = saddr, sport, daddr, dport, Local
	case srcLocal:
		lip, lport, rip, rport, dir = saddr, sport, daddr, dport, Outgoing
	}

	lp, err := strconv.ParseUint(lport, 10, 16)
	if err != nil {
		return Record{}, false, fmt.Errorf("parsing local port %q: %w", lport, err)
	}
	if lp < minLocalPort {
		return Record{}, false, nil
	}
	rp, err := strconv.ParseUint(rport, 10, 16)
	if err != nil {
		return Record{}, false, fmt.Errorf("parsing remote port %q: %w", rport, err)
	}

	return Record{
		PID:        pid,
		LocalIP:    lip,
		LocalPort:  uint16(lp),
		RemoteIP:   rip,
		RemotePort: uint16(rp),
		Direction:  dir,
	}, true, nil
}

// InterfaceAddrs returns the host's interface addresses plus the wildcard
// and loopback spellings ftrace uses.
func InterfaceAddrs() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("listing interface addresses: %w", err)
	}

	out := []string{"0.0.0.0", "::1", "0:0:0:0:0:0:0:1"}
	for _, a := range addrs {
		if n, ok := a.(*net.IPNet); ok {
			out = append(out, n.IP.String())
		}
	}
	return out, nil
}

func (t *Tracer) localAddrs() ([]string, error) {
	if t.LocalAddrs == nil {
		return InterfaceAddrs()
	}
	return t.LocalAddrs()
}

func (t *Tracer) read() ([]string, error) {
	b, err := os.ReadFile(filepath.Join(t.Dir, "trace"))
	if err != nil {
		return nil, fmt.Errorf("reading trace buffer: %w", err)
	}
	if err := t.clear(); err != nil {
		return nil, err
	}
	return strings.Split(string(b), "\n"), nil
}

func (t *Tracer) clear() error {
	if err := os.WriteFile(filepath.Join(t.Dir, "trace"), nil, 0o644); err != nil {
		return fmt.Errorf("clearing trace buffer: %w", err)
	}
	return nil
}

// send writes msg on its own connection. A daemon that is not listening is
// not an error.
func (t *Tracer) send(msg string) error {
	conn, err := net.Dial("unix", t.SocketPath)
	if err != nil {
		slog.Debug("port sentinel: daemon not listening", "socket", t.SocketPath)
		return nil
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("port sentinel: closing socket conn", "error", err)
		}
	}()

	if _, err := conn.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing to %s: %w", t.SocketPath, err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return fmt.Errorf("closing write side: %w", err)
		}
	}
	return nil
}
