// Package hooks holds the hook registry and the executor that runs hook
// commands when an event fires.
package hooks

import (
	"errors"
	"fmt"
)

type EventKind string

const (
	WifiChange       EventKind = "wifi-network-change"
	NetworkToggle    EventKind = "network-toggle"
	Backlight        EventKind = "backlight"
	NewUSBDevice     EventKind = "new-usb-device"
	BluetoothDevice  EventKind = "bluetooth-device"
	PortStatusChange EventKind = "port-status-change"
)

// Kinds lists every recognized event kind.
var Kinds = []EventKind{
	WifiChange,
	NetworkToggle,
	Backlight,
	NewUSBDevice,
	BluetoothDevice,
	PortStatusChange,
}

var (
	ErrUnknownEvent  = errors.New("unknown event kind")
	ErrMalformedHook = errors.New("malformed hook")
)

func (k EventKind) String() string {
	return string(k)
}

func (k EventKind) IsValid() bool {
	switch k {
	case WifiChange, NetworkToggle, Backlight, NewUSBDevice, BluetoothDevice, PortStatusChange:
		return true
	default:
		return false
	}
}

func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return k, nil
}
