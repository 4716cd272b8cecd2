package server

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

var ErrAlreadyRunning = errors.New("another auto-desk daemon holds the lock")

// Lock takes the single-instance lock that sits next to the command socket.
// It must be held before stale sockets are removed.
func Lock(socketPath string) (*flock.Flock, error) {
	fl := flock.New(socketPath + ".lock")

	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring instance lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, fl.Path())
	}
	return fl, nil
}
