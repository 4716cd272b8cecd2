package events

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// Prober reports whether the outside world is currently reachable.
type Prober interface {
	Online(ctx context.Context) bool
}

// DialProber considers the host online when any of Targets accepts a TCP
// connection.
type DialProber struct {
	Targets []string
	Timeout time.Duration
}

// NewDialProber returns a prober against well known public resolvers.
func NewDialProber() *DialProber {
	return &DialProber{
		Targets: []string{"1.1.1.1:53", "8.8.8.8:53", "9.9.9.9:53"},
		Timeout: 3 * time.Second,
	}
}

func (p *DialProber) Online(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.Timeout}
	for _, t := range p.Targets {
		conn, err := d.DialContext(ctx, "tcp", t)
		if err != nil {
			slog.Debug("network source: probe failed", "target", t, "error", err)
			continue
		}
		_ = conn.Close()
		return true
	}
	return false
}

// Network emits {became: connected|disconnected} when reachability flips.
type Network struct {
	Prober   Prober
	Interval time.Duration

	online bool
}

func NewNetwork() *Network {
	return &Network{
		Prober:   NewDialProber(),
		Interval: resolution * 4,
	}
}

func (n *Network) Run(ctx context.Context, out chan<- Context) {
	n.online = n.Prober.Online(ctx)
	slog.Info("network source: started", "online", n.online)

	for sleep(ctx, n.Interval) {
		c, changed := n.check(ctx)
		if !changed {
			continue
		}
		if !send(ctx, out, c) {
			return
		}
	}
}

func (n *Network) check(ctx context.Context) (Context, bool) {
	online := n.Prober.Online(ctx)
	if online == n.online {
		return nil, false
	}
	n.online = online

	became := "disconnected"
	if online {
		became = "connected"
	}
	return Context{"became": became}, true
}
