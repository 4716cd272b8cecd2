// Package sentinel implements the line format the port sentinel uses to
// report connection state changes, and the ftrace reader that produces it.
//
// Each line is a status byte, the delimiter, then either the record fields
// (pid, local ip, local port, remote ip, remote port, direction) or, when the
// status is StatusError, a human readable message. Fields are separated by
// Delim.
package sentinel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Delim       byte = 1
	StatusOK    byte = 0
	StatusError byte = 7
)

type Direction string

const (
	Incoming Direction = "INCOMING"
	Outgoing Direction = "OUT-GOING"
	Local    Direction = "LOCAL"
)

func (d Direction) IsValid() bool {
	switch d {
	case Incoming, Outgoing, Local:
		return true
	default:
		return false
	}
}

const recordFields = 6

var ErrMalformed = errors.New("malformed sentinel record")

// TracerError is a failure reported by the sentinel itself.
type TracerError struct {
	Msg string
}

func (e *TracerError) Error() string {
	return "sentinel: " + e.Msg
}

type Record struct {
	PID        int
	LocalIP    string
	LocalPort  uint16
	RemoteIP   string
	RemotePort uint16
	Direction  Direction
}

// ParseLine decodes a single line. A StatusError line yields a *TracerError.
func ParseLine(line string) (Record, error) {
	line = strings.TrimRight(line, "\r")
	if len(line) < 2 || line[1] != Delim {
		return Record{}, fmt.Errorf("%w: missing status prefix", ErrMalformed)
	}

	body := line[2:]
	switch line[0] {
	case StatusOK:
	case StatusError:
		return Record{}, &TracerError{Msg: body}
	default:
		return Record{}, fmt.Errorf("%w: unknown status %d", ErrMalformed, line[0])
	}

	f := strings.Split(body, string(Delim))
	if len(f) != recordFields {
		return Record{}, fmt.Errorf("%w: want %d fields, got %d", ErrMalformed, recordFields, len(f))
	}

	pid, err := strconv.Atoi(f[0])
	if err != nil {
		return Record{}, fmt.Errorf("%w: pid %q", ErrMalformed, f[0])
	}
	lport, err := parsePort(f[2])
	if err != nil {
		return Record{}, err
	}
	rport, err := parsePort(f[4])
	if err != nil {
		return Record{}, err
	}

	dir := Direction(f[5])
	if !dir.IsValid() {
		return Record{}, fmt.Errorf("%w: direction %q", ErrMalformed, f[5])
	}

	return Record{
		PID:        pid,
		LocalIP:    f[1],
		LocalPort:  lport,
		RemoteIP:   f[3],
		RemotePort: rport,
		Direction:  dir,
	}, nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: port %q", ErrMalformed, s)
	}
	return uint16(p), nil
}

// Encode renders r as a success line without the trailing newline.
func Encode(r Record) string {
	fields := []string{
		strconv.Itoa(r.PID),
		r.LocalIP,
		strconv.Itoa(int(r.LocalPort)),
		r.RemoteIP,
		strconv.Itoa(int(r.RemotePort)),
		string(r.Direction),
	}
	return string([]byte{StatusOK, Delim}) + strings.Join(fields, string(Delim))
}

// EncodeError renders msg as an error line. Newlines in msg are flattened so
// the message stays on one line.
func EncodeError(msg string) string {
	msg = strings.ReplaceAll(msg, "\n", " ")
	return string([]byte{StatusError, Delim}) + msg
}
