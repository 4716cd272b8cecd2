package server

import (
	"errors"
	"fmt"
)

// Reply codes.
const (
	CodeOK             byte = 0
	CodeUnknownCommand byte = 1
	CodeEffectFailed   byte = 4
	CodeMalformedHook  byte = 7
	CodeLoopStopped    byte = 8
	CodeUnknownEvent   byte = 9
)

const (
	statusOK    byte = 0
	statusError byte = 7
)

var ErrShortReply = errors.New("reply too short")

// Reply is what the server writes back on a command connection: the code,
// a status byte (7 when the code is non-zero, else 0), then the message.
type Reply struct {
	Code byte
	Msg  string
}

func (r Reply) OK() bool {
	return r.Code == CodeOK
}

func (r Reply) Encode() []byte {
	status := statusOK
	if r.Code > 0 {
		status = statusError
	}
	return append([]byte{r.Code, status}, r.Msg...)
}

func DecodeReply(b []byte) (Reply, error) {
	if len(b) < 2 {
		return Reply{}, fmt.Errorf("%w: %d bytes", ErrShortReply, len(b))
	}
	return Reply{Code: b[0], Msg: string(b[2:])}, nil
}

func ok(msg string) Reply {
	return Reply{Code: CodeOK, Msg: msg}
}

func fail(code byte, err error) Reply {
	return Reply{Code: code, Msg: err.Error()}
}
