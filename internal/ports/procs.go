package ports

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/procfs"
)

// ProcessTable resolves process identity and socket state from the host.
type ProcessTable interface {
	// Executable returns the base name of pid's executable.
	Executable(pid int) (string, error)
	// PortStates maps local TCP ports to their state name.
	PortStates() (map[uint16]string, error)
}

var tcpStates = map[uint64]string{
	1:  "Established",
	2:  "SynSent",
	3:  "SynRecv",
	4:  "FinWait1",
	5:  "FinWait2",
	6:  "TimeWait",
	7:  "Close",
	8:  "CloseWait",
	9:  "LastAck",
	10: "Listen",
	11: "Closing",
	12: "NewSynRecv",
}

const closedState = "Closed"

// ProcFS reads the process table from /proc.
type ProcFS struct {
	fs procfs.FS
}

func NewProcFS() (*ProcFS, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("opening procfs: %w", err)
	}
	return &ProcFS{fs: fs}, nil
}

func (p *ProcFS) Executable(pid int) (string, error) {
	proc, err := p.fs.Proc(pid)
	if err != nil {
		return "", fmt.Errorf("looking up pid %d: %w", pid, err)
	}
	exe, err := proc.Executable()
	if err != nil {
		return "", fmt.Errorf("reading executable of pid %d: %w", pid, err)
	}
	if exe == "" {
		return "", nil
	}
	return filepath.Base(exe), nil
}

func (p *ProcFS) PortStates() (map[uint16]string, error) {
	states := make(map[uint16]string)

	v4, err4 := p.fs.NetTCP()
	v6, err6 := p.fs.NetTCP6()
	if err4 != nil && err6 != nil {
		return nil, fmt.Errorf("reading tcp tables: %w", errors.Join(err4, err6))
	}
	if err6 != nil {
		slog.Debug("ports source: no tcp6 table", "error", err6)
	}

	for _, tbl := range []procfs.NetTCP{v4, v6} {
		for _, l := range tbl {
			states[uint16(l.LocalPort)] = tcpStateName(l.St)
		}
	}
	return states, nil
}

func tcpStateName(st uint64) string {
	if s, ok := tcpStates[st]; ok {
		return s
	}
	return fmt.Sprintf("Unknown(%d)", st)
}
