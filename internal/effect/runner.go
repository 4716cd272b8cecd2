// Package effect runs the one-shot desktop actions (volume, media, power,
// backlight, monitors, program launch) that commands and hooks call into.
package effect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
)

var ErrMissingBinary = errors.New("binary not found")

// Runner runs external programs.
type Runner interface {
	// Run waits for the program and returns its stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches the program in its own session without waiting.
	Start(name string, args ...string) error
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	bp, err := lookPath(name)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, bp, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errStr := strings.TrimSpace(stderr.String()); errStr != "" {
			return nil, fmt.Errorf("running %s: %w: %s", name, err, errStr)
		}
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	return stdout.Bytes(), nil
}

func (ExecRunner) Start(name string, args ...string) error {
	bp, err := lookPath(name)
	if err != nil {
		return err
	}

	cmd := exec.Command(bp, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("effect: launched program exited", "program", name, "error", err)
		}
	}()
	return nil
}

func lookPath(name string) (string, error) {
	bp, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingBinary, name)
	}
	return bp, nil
}
