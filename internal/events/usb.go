package events

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jochenvg/go-udev"
)

// USBDevice identifies one attached USB device.
type USBDevice struct {
	Path string
	ID   string
	Name string
}

// USBEnumerator lists the USB devices currently attached.
type USBEnumerator interface {
	Devices() ([]USBDevice, error)
}

// UdevEnumerator enumerates usb_device nodes through libudev.
type UdevEnumerator struct {
	u udev.Udev
}

func (e *UdevEnumerator) Devices() ([]USBDevice, error) {
	en := e.u.NewEnumerate()
	if err := en.AddMatchSubsystem("usb"); err != nil {
		return nil, fmt.Errorf("matching usb subsystem: %w", err)
	}
	if err := en.AddMatchProperty("DEVTYPE", "usb_device"); err != nil {
		return nil, fmt.Errorf("matching usb_device devtype: %w", err)
	}
	if err := en.AddMatchIsInitialized(); err != nil {
		return nil, fmt.Errorf("matching initialized devices: %w", err)
	}

	devs, err := en.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating usb devices: %w", err)
	}

	out := make([]USBDevice, 0, len(devs))
	for _, d := range devs {
		out = append(out, USBDevice{
			Path: d.Syspath(),
			ID:   d.PropertyValue("ID_VENDOR_ID") + ":" + d.PropertyValue("ID_MODEL_ID"),
			Name: usbName(d.PropertyValue("ID_MODEL_FROM_DATABASE"), d.PropertyValue("ID_MODEL"), d.SysattrValue("product")),
		})
	}
	return out, nil
}

// usbName picks the first non-empty candidate.
func usbName(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return strings.ReplaceAll(c, "_", " ")
		}
	}
	return ""
}

// USB emits {device_names, device_ids} for devices that appeared since the
// previous poll.
type USB struct {
	Enumerator USBEnumerator
	Interval   time.Duration

	devices set[USBDevice]
}

func NewUSB() *USB {
	return &USB{
		Enumerator: &UdevEnumerator{},
		Interval:   resolution * 2,
	}
}

func (u *USB) Run(ctx context.Context, out chan<- Context) {
	devs, err := u.Enumerator.Devices()
	if err != nil {
		slog.Error("usb source: disabled", "error", err)
		return
	}
	u.devices = newSet(devs...)
	slog.Info("usb source: started", "devices", len(u.devices))

	for sleep(ctx, u.Interval) {
		c, changed, err := u.check()
		if err != nil {
			slog.Warn("usb source: enumerating devices", "error", err)
			continue
		}
		if !changed {
			continue
		}
		if !send(ctx, out, c) {
			return
		}
	}
}

func (u *USB) check() (Context, bool, error) {
	devs, err := u.Enumerator.Devices()
	if err != nil {
		return nil, false, err
	}

	current := newSet(devs...)
	if current.equal(u.devices) {
		return nil, false, nil
	}

	arrived := current.difference(u.devices)
	u.devices = current
	if len(arrived) == 0 {
		return nil, false, nil
	}
	slices.SortFunc(arrived, func(a, b USBDevice) int {
		return strings.Compare(a.Path, b.Path)
	})

	return usbContext(arrived), true, nil
}

func usbContext(devs []USBDevice) Context {
	names := make([]string, 0, len(devs))
	ids := make([]string, 0, len(devs))
	for _, d := range devs {
		names = append(names, d.Name)
		ids = append(ids, d.ID)
	}
	return Context{
		"device_names": strings.Join(names, ","),
		"device_ids":   strings.Join(ids, ","),
	}
}
