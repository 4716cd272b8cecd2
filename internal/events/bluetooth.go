package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	bluezDest        = "org.bluez"
	bluezAdapterIfc  = "org.bluez.Adapter1"
	bluezDeviceIfc   = "org.bluez.Device1"
	objManagerMethod = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	propsIfc         = "org.freedesktop.DBus.Properties"
	propsChanged     = "PropertiesChanged"
	connectedProp    = "Connected"
)

var ErrNoAdapter = errors.New("no bluetooth adapter found")

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Bluetooth emits {event: connected|disconnected, device_adr} from the BlueZ
// signal stream. Repeated connect notifications for a device already known to
// be connected are dropped.
type Bluetooth struct {
	conn      *dbus.Conn
	signals   chan *dbus.Signal
	connected set[string]
}

func NewBluetooth(conn *dbus.Conn) *Bluetooth {
	return &Bluetooth{
		conn:      conn,
		signals:   make(chan *dbus.Signal, 10),
		connected: newSet[string](),
	}
}

func (b *Bluetooth) Run(ctx context.Context, out chan<- Context) {
	if err := b.startDbus(ctx); err != nil {
		slog.Error("bluetooth source: disabled; is the adapter plugged in and powered on?", "error", err)
		return
	}
	defer b.conn.RemoveSignal(b.signals)
	slog.Info("bluetooth source: started", "connected", len(b.connected))

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-b.signals:
			if !ok {
				slog.Error("bluetooth source: signal channel closed")
				return
			}

			c, ok := b.handleSignal(sig)
			if !ok {
				continue
			}
			if !send(ctx, out, c) {
				return
			}
		}
	}
}

func (b *Bluetooth) startDbus(ctx context.Context) error {
	var objs managedObjects
	if err := b.conn.Object(bluezDest, "/").CallWithContext(ctx, objManagerMethod, 0).Store(&objs); err != nil {
		return fmt.Errorf("listing bluez objects: %w", err)
	}

	hasAdapter := false
	for path, ifaces := range objs {
		if _, ok := ifaces[bluezAdapterIfc]; ok {
			hasAdapter = true
		}
		if dev, ok := ifaces[bluezDeviceIfc]; ok {
			if v, ok := dev[connectedProp]; ok {
				if connected, _ := v.Value().(bool); connected {
					b.connected.add(deviceAddress(path))
				}
			}
		}
	}
	if !hasAdapter {
		return ErrNoAdapter
	}

	if err := b.conn.AddMatchSignalContext(
		ctx, dbus.WithMatchSender(bluezDest), dbus.WithMatchInterface(propsIfc),
		dbus.WithMatchMember(propsChanged), dbus.WithMatchArg(0, bluezDeviceIfc),
	); err != nil {
		return fmt.Errorf("adding dbus match rule: %w", err)
	}

	b.conn.Signal(b.signals)
	return nil
}

// handleSignal turns a Device1 PropertiesChanged signal carrying Connected into
// a Context.
func (b *Bluetooth) handleSignal(sig *dbus.Signal) (Context, bool) {
	if sig.Name != propsIfc+"."+propsChanged {
		return nil, false
	}
	if len(sig.Body) < 2 {
		return nil, false
	}
	if ifc, ok := sig.Body[0].(string); !ok || ifc != bluezDeviceIfc {
		return nil, false
	}

	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil, false
	}
	v, ok := changed[connectedProp]
	if !ok {
		return nil, false
	}
	connected, ok := v.Value().(bool)
	if !ok {
		return nil, false
	}

	adr := deviceAddress(sig.Path)
	if connected {
		if b.connected.contains(adr) {
			slog.Debug("bluetooth source: duplicate connect", "device_adr", adr)
			return nil, false
		}
		b.connected.add(adr)
		return Context{"event": "connected", "device_adr": adr}, true
	}

	b.connected.remove(adr)
	return Context{"event": "disconnected", "device_adr": adr}, true
}

// deviceAddress converts /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF to
// AA:BB:CC:DD:EE:FF.
func deviceAddress(path dbus.ObjectPath) string {
	_, adr, ok := strings.Cut(string(path), "dev_")
	if !ok {
		return string(path)
	}
	if i := strings.IndexByte(adr, '/'); i >= 0 {
		adr = adr[:i]
	}
	return strings.ReplaceAll(adr, "_", ":")
}
