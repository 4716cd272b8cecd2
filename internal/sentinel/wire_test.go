package sentinel

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(status byte, fields ...string) string {
	return string([]byte{status, Delim}) + strings.Join(fields, string(Delim))
}

func TestParseLine(t *testing.T) {
	r, err := ParseLine(line(StatusOK, "1234", "192.168.1.5", "51234", "140.82.112.3", "443", "OUT-GOING"))
	require.NoError(t, err)
	assert.Equal(t, Record{
		PID:        1234,
		LocalIP:    "192.168.1.5",
		LocalPort:  51234,
		RemoteIP:   "140.82.112.3",
		RemotePort: 443,
		Direction:  Outgoing,
	}, r)
}

func TestParseLine_TracerError(t *testing.T) {
	_, err := ParseLine(line(StatusError, "could not read from file"))

	var te *TracerError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "could not read from file", te.Msg)
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "empty", line: ""},
		{name: "no delimiter after status", line: "\x00123"},
		{name: "unknown status", line: line(3, "1", "a", "1", "b", "2", "LOCAL")},
		{name: "too few fields", line: line(StatusOK, "1234", "127.0.0.1", "8080")},
		{name: "too many fields", line: line(StatusOK, "1", "a", "1", "b", "2", "LOCAL", "0")},
		{name: "bad pid", line: line(StatusOK, "abc", "a", "1", "b", "2", "LOCAL")},
		{name: "bad port", line: line(StatusOK, "1", "a", "99999", "b", "2", "LOCAL")},
		{name: "bad direction", line: line(StatusOK, "1", "a", "1", "b", "2", "SIDEWAYS")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(tt.line)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestEncode(t *testing.T) {
	r := Record{PID: 42, LocalIP: "127.0.0.1", LocalPort: 8080, RemoteIP: "127.0.0.1", RemotePort: 40000, Direction: Local}

	got := Encode(r)
	assert.Equal(t, line(StatusOK, "42", "127.0.0.1", "8080", "127.0.0.1", "40000", "LOCAL"), got)

	back, err := ParseLine(got)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestEncodeError(t *testing.T) {
	got := EncodeError("could not read\nthe trace")
	assert.Equal(t, line(StatusError, "could not read the trace"), got)
}
