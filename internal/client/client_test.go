package client

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/calacuda/auto-desk/internal/server"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "auto-desk.sock")
	s := server.New(sock, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	c := New(sock)
	require.Eventually(t, func() bool {
		_, err := c.ListHooks()
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return sock
}

func TestClient_Send(t *testing.T) {
	c := New(startServer(t))

	r, err := c.ListHooks()
	require.NoError(t, err)
	assert.True(t, r.OK())

	r, err = c.RemoveHook("1")
	require.NoError(t, err)
	assert.True(t, r.OK())

	r, err = c.AddHook("backlight", "")
	require.NoError(t, err)
	assert.Equal(t, server.CodeMalformedHook, r.Code)

	r, err = c.AddHook("backlight", "true")
	require.NoError(t, err)
	assert.Equal(t, server.CodeLoopStopped, r.Code, "no dispatch loop behind this server")

	r, err = c.Send("not-a-command")
	require.NoError(t, err)
	assert.Equal(t, server.CodeUnknownCommand, r.Code)
}

func TestClient_NotRunning(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "none.sock")).Send("ls-hook")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestPrint(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	Print(&buf, server.Reply{})
	assert.Equal(t, "[SUCCESS]\n", buf.String())

	buf.Reset()
	Print(&buf, server.Reply{Code: 9, Msg: "unknown event kind"})
	assert.Equal(t, "[ERROR] code 9\nunknown event kind\n", buf.String())
}
