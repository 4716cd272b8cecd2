package ports

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calacuda/auto-desk/internal/events"
	"github.com/calacuda/auto-desk/internal/sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcs struct {
	exes   map[int]string
	states map[uint16]string
}

func (f *fakeProcs) Executable(pid int) (string, error) {
	exe, ok := f.exes[pid]
	if !ok {
		return "", errors.New("no such process")
	}
	return exe, nil
}

func (f *fakeProcs) PortStates() (map[uint16]string, error) {
	return f.states, nil
}

const (
	firefoxPID = 100
	vimPID     = 200
	sshPID     = 300
)

func testProcs() *fakeProcs {
	return &fakeProcs{
		exes: map[int]string{
			firefoxPID: "firefox",
			vimPID:     "vim",
			sshPID:     "ssh",
		},
		states: map[uint16]string{
			51000: "Established",
		},
	}
}

func record(pid int, rport uint16, dir sentinel.Direction) string {
	return sentinel.Encode(sentinel.Record{
		PID:        pid,
		LocalIP:    "192.168.1.5",
		LocalPort:  51000,
		RemoteIP:   "140.82.112.3",
		RemotePort: rport,
		Direction:  dir,
	})
}

func TestBridge_Contexts(t *testing.T) {
	b := NewBridge("", nil, false, testProcs())

	cs := b.Contexts(record(vimPID, 22, sentinel.Outgoing) + "\n")
	require.Len(t, cs, 1)
	assert.Equal(t, events.Context{
		"local_adr":            "192.168.1.5",
		"remote_adr":           "140.82.112.3",
		"state":                "Established",
		"executable":           "vim",
		"pid":                  "200",
		"connection_direction": "OUT-GOING",
		"local_port":           "51000",
		"remote_port":          "22",
	}, cs[0])
}

func TestBridge_StopExecs(t *testing.T) {
	b := NewBridge("", []string{"firefox"}, false, testProcs())

	payload := strings.Join([]string{
		record(firefoxPID, 8080, sentinel.Outgoing),
		record(vimPID, 8080, sentinel.Outgoing),
	}, "\n")

	cs := b.Contexts(payload)
	require.Len(t, cs, 1)
	assert.Equal(t, "vim", cs[0]["executable"])
}

func TestBridge_IgnoreWeb(t *testing.T) {
	tests := []struct {
		name      string
		ignoreWeb bool
		rport     uint16
		dir       sentinel.Direction
		want      bool
	}{
		{name: "https excluded", ignoreWeb: true, rport: 443, dir: sentinel.Outgoing, want: false},
		{name: "http excluded", ignoreWeb: true, rport: 80, dir: sentinel.Outgoing, want: false},
		{name: "ssh included", ignoreWeb: true, rport: 22, dir: sentinel.Outgoing, want: true},
		{name: "incoming from 443 included", ignoreWeb: true, rport: 443, dir: sentinel.Incoming, want: true},
		{name: "flag off", ignoreWeb: false, rport: 443, dir: sentinel.Outgoing, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBridge("", nil, tt.ignoreWeb, testProcs())
			cs := b.Contexts(record(sshPID, tt.rport, tt.dir))
			assert.Equal(t, tt.want, len(cs) == 1)
		})
	}
}

func TestBridge_SkipsBadRecords(t *testing.T) {
	b := NewBridge("", nil, false, testProcs())

	payload := strings.Join([]string{
		sentinel.EncodeError("could not read trace"),
		"garbage",
		record(999, 22, sentinel.Local),
		"",
	}, "\n")

	cs := b.Contexts(payload)
	require.Len(t, cs, 1)
	assert.Equal(t, "", cs[0]["executable"], "unresolved pid keeps the record")
	assert.Equal(t, "999", cs[0]["pid"])
}

func TestBridge_ClosedState(t *testing.T) {
	procs := testProcs()
	procs.states = nil
	b := NewBridge("", nil, false, procs)

	cs := b.Contexts(record(vimPID, 22, sentinel.Outgoing))
	require.Len(t, cs, 1)
	assert.Equal(t, "Closed", cs[0]["state"])
}

func TestBridge_Run(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "ports.sock")
	b := NewBridge(sock, []string{"firefox"}, true, testProcs())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan []events.Context, 1)
	done := make(chan struct{})
	go func() {
		b.Run(ctx, out)
		close(done)
	}()

	var conn net.Conn
	require.Eventually(t, func() bool {
		var err error
		conn, err = net.Dial("unix", sock)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	payload := strings.Join([]string{
		record(firefoxPID, 22, sentinel.Outgoing),
		record(vimPID, 443, sentinel.Outgoing),
		record(vimPID, 22, sentinel.Outgoing),
		record(sshPID, 22, sentinel.Incoming),
	}, "\n")
	_, err := conn.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.UnixConn).CloseWrite())

	select {
	case cs := <-out:
		require.Len(t, cs, 2)
		assert.Equal(t, "vim", cs[0]["executable"])
		assert.Equal(t, "ssh", cs[1]["executable"])
	case <-time.After(5 * time.Second):
		t.Fatal("no contexts received")
	}
	_ = conn.Close()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestTCPStateName(t *testing.T) {
	assert.Equal(t, "Established", tcpStateName(1))
	assert.Equal(t, "Listen", tcpStateName(10))
	assert.Equal(t, "NewSynRecv", tcpStateName(12))
	assert.Equal(t, "Unknown(99)", tcpStateName(99))
}
