// Package client sends requests to a running auto-desk daemon.
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/calacuda/auto-desk/internal/server"
)

var ErrNotRunning = errors.New("auto-desk daemon not running")

const timeout = 30 * time.Second

type Client struct {
	SocketPath string
}

func New(socketPath string) *Client {
	return &Client{SocketPath: socketPath}
}

// Send writes "<cmd> <args>", half-closes the connection and waits for the
// reply.
func (c *Client) Send(cmd string, args ...string) (server.Reply, error) {
	conn, err := net.Dial("unix", c.SocketPath)
	if err != nil {
		return server.Reply{}, fmt.Errorf("%w: %s", ErrNotRunning, c.SocketPath)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return server.Reply{}, fmt.Errorf("setting deadline: %w", err)
	}

	msg := strings.TrimSpace(strings.Join(append([]string{cmd}, args...), " "))
	if _, err := conn.Write([]byte(msg)); err != nil {
		return server.Reply{}, fmt.Errorf("writing message '%s' to socket: %w", msg, err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return server.Reply{}, fmt.Errorf("closing write side: %w", err)
		}
	}

	buf, err := io.ReadAll(conn)
	if err != nil {
		return server.Reply{}, fmt.Errorf("reading reply: %w", err)
	}
	return server.DecodeReply(buf)
}

func (c *Client) AddHook(event, exec string) (server.Reply, error) {
	return c.Send("add-hook", event, exec)
}

func (c *Client) RemoveHook(args string) (server.Reply, error) {
	return c.Send("rm-hook", args)
}

func (c *Client) ListHooks() (server.Reply, error) {
	return c.Send("ls-hook")
}

func (c *Client) Stop() (server.Reply, error) {
	return c.Send(server.ExitCommand)
}
