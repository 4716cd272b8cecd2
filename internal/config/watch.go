package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch sends a freshly loaded Config on out each time the file at path
// changes content. Files that fail to load are logged and skipped.
func Watch(ctx context.Context, path string, out chan<- *Config) error {
	lastHash, _ := fileHash(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config file watcher: %w", err)
	}
	slog.Debug("config watcher: fsnotify watcher created")

	defer func() {
		if err := w.Close(); err != nil {
			slog.Error("closing config file watcher", "error", err)
		}
	}()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("adding config directory to watcher: %w", err)
	}
	slog.Debug("config watcher: fsnotify watch list", "list", w.WatchList())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			h, err := fileHash(path)
			if err != nil {
				continue
			}
			if h == emptyHash {
				// truncated mid-save; the write that follows carries the content
				continue
			}

			if h == lastHash {
				slog.Debug("config watcher: received identical hash for file update, no changes needed")
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				slog.Error("config watcher: reloading config", "error", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				slog.Warn("config watcher: config has invalid hooks", "error", err)
			}

			lastHash = h
			slog.Debug("fsnotify: file modified", "file", event.Name)

			select {
			case out <- cfg:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("config watcher fsnotify error: %w", err)
		}
	}
}

var emptyHash = sha256.Sum256(nil)

func fileHash(path string) ([32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}
