package events

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headphones = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")

func connectedSignal(path dbus.ObjectPath, connected bool) *dbus.Signal {
	return &dbus.Signal{
		Sender: ":1.4",
		Path:   path,
		Name:   propsIfc + "." + propsChanged,
		Body: []any{
			bluezDeviceIfc,
			map[string]dbus.Variant{connectedProp: dbus.MakeVariant(connected)},
			[]string{},
		},
	}
}

func TestBluetooth_HandleSignal(t *testing.T) {
	b := NewBluetooth(nil)

	c, ok := b.handleSignal(connectedSignal(headphones, true))
	require.True(t, ok)
	assert.Equal(t, Context{"event": "connected", "device_adr": "AA:BB:CC:DD:EE:FF"}, c)

	_, ok = b.handleSignal(connectedSignal(headphones, true))
	assert.False(t, ok, "duplicate connect is suppressed")

	c, ok = b.handleSignal(connectedSignal(headphones, false))
	require.True(t, ok)
	assert.Equal(t, Context{"event": "disconnected", "device_adr": "AA:BB:CC:DD:EE:FF"}, c)

	_, ok = b.handleSignal(connectedSignal(headphones, true))
	assert.True(t, ok, "reconnect after disconnect is reported")
}

func TestBluetooth_IgnoresUnrelatedSignals(t *testing.T) {
	b := NewBluetooth(nil)

	sig := connectedSignal(headphones, true)
	sig.Body[0] = bluezAdapterIfc
	_, ok := b.handleSignal(sig)
	assert.False(t, ok)

	sig = connectedSignal(headphones, true)
	sig.Body[1] = map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-40))}
	_, ok = b.handleSignal(sig)
	assert.False(t, ok)

	sig = connectedSignal(headphones, true)
	sig.Name = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	_, ok = b.handleSignal(sig)
	assert.False(t, ok)
}

func TestDeviceAddress(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", deviceAddress(headphones))
	assert.Equal(t, "01:02:03:04:05:06", deviceAddress("/org/bluez/hci1/dev_01_02_03_04_05_06/service0010"))
	assert.Equal(t, "/org/bluez/hci0", deviceAddress("/org/bluez/hci0"))
}
