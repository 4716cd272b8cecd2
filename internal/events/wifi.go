package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	nmDest         = "org.freedesktop.NetworkManager"
	nmPath         = "/org/freedesktop/NetworkManager"
	nmIfc          = "org.freedesktop.NetworkManager"
	nmDevicesProp  = "Devices"
	nmDeviceIfc    = "org.freedesktop.NetworkManager.Device"
	nmWirelessIfc  = "org.freedesktop.NetworkManager.Device.Wireless"
	nmAccessPtIfc  = "org.freedesktop.NetworkManager.AccessPoint"
	propsGetMethod = "org.freedesktop.DBus.Properties.Get"
)

const nmDeviceTypeWifi uint32 = 2

var errNotWifi = errors.New("not a wifi device")

// SSIDReader returns the name of the currently associated wifi network, or ""
// when not associated.
type SSIDReader interface {
	SSID(ctx context.Context) (string, error)
}

// NMReader reads the active access point through NetworkManager.
type NMReader struct {
	conn *dbus.Conn
}

func NewNMReader(conn *dbus.Conn) *NMReader {
	return &NMReader{conn: conn}
}

func (r *NMReader) SSID(ctx context.Context) (string, error) {
	var devices []dbus.ObjectPath
	if err := r.getProperty(ctx, nmPath, nmIfc, nmDevicesProp, &devices); err != nil {
		return "", fmt.Errorf("listing network devices: %w", err)
	}

	for _, dev := range devices {
		ssid, err := r.deviceSSID(ctx, dev)
		if err != nil {
			if !errors.Is(err, errNotWifi) {
				slog.Debug("wifi source: reading device", "device", dev, "error", err)
			}
			continue
		}
		if ssid != "" {
			return ssid, nil
		}
	}

	return "", nil
}

func (r *NMReader) deviceSSID(ctx context.Context, dev dbus.ObjectPath) (string, error) {
	var devType uint32
	if err := r.getProperty(ctx, dev, nmDeviceIfc, "DeviceType", &devType); err != nil {
		return "", err
	}
	if devType != nmDeviceTypeWifi {
		return "", errNotWifi
	}

	var ap dbus.ObjectPath
	if err := r.getProperty(ctx, dev, nmWirelessIfc, "ActiveAccessPoint", &ap); err != nil {
		return "", err
	}
	if ap == "" || ap == "/" {
		return "", nil
	}

	var ssid []byte
	if err := r.getProperty(ctx, ap, nmAccessPtIfc, "Ssid", &ssid); err != nil {
		return "", err
	}
	return string(ssid), nil
}

func (r *NMReader) getProperty(ctx context.Context, path dbus.ObjectPath, ifc, prop string, v any) error {
	obj := r.conn.Object(nmDest, path)
	var result dbus.Variant
	if err := obj.CallWithContext(ctx, propsGetMethod, 0, ifc, prop).Store(&result); err != nil {
		return err
	}
	return result.Store(v)
}

// Wifi emits {old_network, new_network} when the associated network changes.
type Wifi struct {
	Reader   SSIDReader
	Interval time.Duration

	ssid string
}

func NewWifi(r SSIDReader) *Wifi {
	return &Wifi{
		Reader:   r,
		Interval: resolution * 3,
	}
}

func (w *Wifi) Run(ctx context.Context, out chan<- Context) {
	w.ssid = w.read(ctx)
	slog.Info("wifi source: started", "network", w.ssid)

	for sleep(ctx, w.Interval) {
		c, changed := w.check(ctx)
		if !changed {
			continue
		}
		if !send(ctx, out, c) {
			return
		}
	}
}

func (w *Wifi) check(ctx context.Context) (Context, bool) {
	ssid := w.read(ctx)
	if ssid == w.ssid {
		return nil, false
	}

	c := Context{
		"old_network": w.ssid,
		"new_network": ssid,
	}
	w.ssid = ssid
	return c, true
}

// read treats a failed lookup as "no network", matching what the user sees.
func (w *Wifi) read(ctx context.Context) string {
	ssid, err := w.Reader.SSID(ctx)
	if err != nil {
		slog.Error("wifi source: reading ssid", "error", err)
		return ""
	}
	return ssid
}
