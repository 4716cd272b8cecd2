package server

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/calacuda/auto-desk/internal/dispatch"
	"github.com/calacuda/auto-desk/internal/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoop struct {
	control  chan *hooks.DB
	commands chan dispatch.Command
	done     chan struct{}
}

func newFakeLoop() *fakeLoop {
	return &fakeLoop{
		control:  make(chan *hooks.DB, 4),
		commands: make(chan dispatch.Command, 1),
		done:     make(chan struct{}),
	}
}

func (f *fakeLoop) Control() chan<- *hooks.DB         { return f.control }
func (f *fakeLoop) Commands() chan<- dispatch.Command { return f.commands }
func (f *fakeLoop) Done() <-chan struct{}             { return f.done }

type fakeEffects struct {
	calls []string
	err   error
}

func (f *fakeEffects) Do(_ context.Context, name, args string) (bool, error) {
	if name != "mute" && name != "vol-up" {
		return false, nil
	}
	f.calls = append(f.calls, name+" "+args)
	return true, f.err
}

func TestServer_AddHook(t *testing.T) {
	loop := newFakeLoop()
	s := New("", loop, nil)

	r, stop := s.handle(context.Background(), "add-hook backlight notify-send \"$new_backlight\"")
	require.False(t, stop)
	require.True(t, r.OK(), r.Msg)

	db := <-loop.control
	assert.Equal(t, 1, db.Len())
	assert.Equal(t, []hooks.Hook{{Event: hooks.Backlight, Exec: `notify-send "$new_backlight"`}}, db.Lookup(hooks.Backlight))
}

func TestServer_AddHookErrors(t *testing.T) {
	tests := []struct {
		name string
		req  string
		want byte
	}{
		{name: "no space is malformed", req: "add-hook backlight", want: CodeMalformedHook},
		{name: "no args is malformed", req: "add-hook", want: CodeMalformedHook},
		{name: "unknown kind", req: "add-hook lid-close echo hi", want: CodeUnknownEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := newFakeLoop()
			s := New("", loop, nil)

			r, _ := s.handle(context.Background(), tt.req)
			assert.Equal(t, tt.want, r.Code)
			assert.Empty(t, loop.control, "registry left untouched")
		})
	}
}

func TestServer_AddHookLoopStopped(t *testing.T) {
	loop := newFakeLoop()
	loop.control = make(chan *hooks.DB)
	close(loop.done)

	r, _ := New("", loop, nil).handle(context.Background(), "add-hook backlight true")
	assert.Equal(t, CodeLoopStopped, r.Code)

	r, _ = New("", nil, nil).handle(context.Background(), "add-hook backlight true")
	assert.Equal(t, CodeLoopStopped, r.Code)
}

func TestServer_HookPlaceholders(t *testing.T) {
	s := New("", newFakeLoop(), nil)

	r, _ := s.handle(context.Background(), "rm-hook 3")
	assert.Equal(t, ok(""), r)

	for _, req := range []string{"ls-hook", "list-hook"} {
		r, _ = s.handle(context.Background(), req)
		assert.Equal(t, ok(""), r, req)
	}
}

func TestServer_Effects(t *testing.T) {
	fx := &fakeEffects{}
	s := New("", nil, fx)

	r, _ := s.handle(context.Background(), "vol-up 5")
	assert.True(t, r.OK())
	assert.Equal(t, []string{"vol-up 5"}, fx.calls)

	fx.err = errors.New("amixer: not found")
	r, _ = s.handle(context.Background(), "mute")
	assert.Equal(t, CodeEffectFailed, r.Code)
	assert.Contains(t, r.Msg, "amixer")

	r, _ = s.handle(context.Background(), "focus-left")
	assert.Equal(t, CodeUnknownCommand, r.Code)
}

func TestReply_Encode(t *testing.T) {
	assert.Equal(t, []byte{0, 0}, Reply{}.Encode())
	assert.Equal(t, append([]byte{9, 7}, "bad"...), Reply{Code: 9, Msg: "bad"}.Encode())

	r, err := DecodeReply([]byte{7, 7, 'x'})
	require.NoError(t, err)
	assert.Equal(t, Reply{Code: 7, Msg: "x"}, r)

	_, err = DecodeReply([]byte{1})
	assert.ErrorIs(t, err, ErrShortReply)
}

func TestSplitRequest(t *testing.T) {
	cmd, args := SplitRequest("add-hook backlight echo a b\n")
	assert.Equal(t, "add-hook", cmd)
	assert.Equal(t, "backlight echo a b", args)

	cmd, args = SplitRequest("mute")
	assert.Equal(t, "mute", cmd)
	assert.Equal(t, "", args)
}

func request(t *testing.T, sock, msg string) Reply {
	t.Helper()
	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.UnixConn).CloseWrite())

	buf, err := io.ReadAll(conn)
	require.NoError(t, err)
	r, err := DecodeReply(buf)
	require.NoError(t, err)
	return r
}

func TestServer_Run(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "auto-desk.sock")
	loop := newFakeLoop()
	s := New(sock, loop, nil)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	r := request(t, sock, "add-hook backlight")
	assert.Equal(t, CodeMalformedHook, r.Code)

	r = request(t, sock, "add-hook wifi-network-change notify-send wifi")
	assert.True(t, r.OK())
	assert.Len(t, loop.control, 1)

	r = request(t, sock, ExitCommand)
	assert.True(t, r.OK())

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.Equal(t, dispatch.Exit, <-loop.commands)
	assert.NoFileExists(t, sock)
}

func TestLock(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "auto-desk.sock")

	fl, err := Lock(sock)
	require.NoError(t, err)
	defer fl.Unlock()

	_, err = Lock(sock)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}
