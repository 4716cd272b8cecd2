package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const backlightDir = "/sys/class/backlight"

var ErrNoBacklight = errors.New("no backlight device found")

// Backlight emits {old_backlight, new_backlight} when the brightness ratio of
// the first backlight device changes.
type Backlight struct {
	Dir      string
	Interval time.Duration

	device string
	ratio  float64
}

func NewBacklight() *Backlight {
	return &Backlight{
		Dir:      backlightDir,
		Interval: resolution * 2,
	}
}

func (b *Backlight) Run(ctx context.Context, out chan<- Context) {
	if err := b.setup(); err != nil {
		slog.Error("backlight source: disabled", "error", err)
		return
	}
	slog.Info("backlight source: started", "device", b.device, "ratio", b.ratio)

	for sleep(ctx, b.Interval) {
		c, changed, err := b.check()
		if err != nil {
			slog.Warn("backlight source: reading brightness", "device", b.device, "error", err)
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

func (b *Backlight) setup() error {
	entries, err := os.ReadDir(b.Dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", b.Dir, err)
	}
	if len(entries) == 0 {
		return ErrNoBacklight
	}
	b.device = filepath.Join(b.Dir, entries[0].Name())

	r, err := readRatio(b.device)
	if err != nil {
		return fmt.Errorf("reading initial brightness: %w", err)
	}
	b.ratio = r
	return nil
}

func (b *Backlight) check() (Context, bool, error) {
	r, err := readRatio(b.device)
	if err != nil {
		return nil, false, err
	}
	if r == b.ratio {
		return nil, false, nil
	}

	c := Context{
		"old_backlight": formatRatio(b.ratio),
		"new_backlight": formatRatio(r),
	}
	b.ratio = r
	return c, true, nil
}

func readRatio(device string) (float64, error) {
	cur, err := readInt(filepath.Join(device, "brightness"))
	if err != nil {
		return 0, err
	}
	top, err := readInt(filepath.Join(device, "max_brightness"))
	if err != nil {
		return 0, err
	}
	if top <= 0 {
		return 0, fmt.Errorf("invalid max_brightness %d", top)
	}

	r := float64(cur) / float64(top)
	return min(max(r, 0), 1), nil
}

func readInt(path string) (int64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return n, nil
}

func formatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
