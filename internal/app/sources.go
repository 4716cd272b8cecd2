package app

import (
	"log/slog"

	"github.com/calacuda/auto-desk/internal/config"
	"github.com/calacuda/auto-desk/internal/dispatch"
	"github.com/calacuda/auto-desk/internal/events"
	"github.com/calacuda/auto-desk/internal/ports"
	"github.com/godbus/dbus/v5"
)

// hostSources builds the event sources for this machine. Sources whose
// backing service is unavailable are left nil and never started.
func hostSources(cfg *config.Config) (dispatch.Sources, func()) {
	s := dispatch.Sources{
		Network:   events.NewNetwork(),
		Backlight: events.NewBacklight(),
		USB:       events.NewUSB(),
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		slog.Error("connecting to system dbus; wifi and bluetooth sources disabled", "error", err)
	} else {
		s.Wifi = events.NewWifi(events.NewNMReader(conn))
		s.Bluetooth = events.NewBluetooth(conn)
	}

	procs, err := ports.NewProcFS()
	if err != nil {
		slog.Error("opening procfs; ports source disabled", "error", err)
	} else {
		s.Ports = ports.NewBridge(cfg.Hooks.PortsSocket, cfg.Hooks.ExecIgnore, cfg.Hooks.IgnoreWeb, procs)
	}

	return s, func() {
		if conn == nil {
			return
		}
		if err := conn.Close(); err != nil {
			slog.Error("closing dbus connection", "error", err)
		}
	}
}
