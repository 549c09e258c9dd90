package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("config path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{path: filepath.Clean(path), logger: logger}, nil
}

// Watch calls onChange with every valid reload until ctx is done. Invalid edits are logged and skipped.
func (w *Watcher) Watch(ctx context.Context, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	w.logger.Info("watching config file for changes", "path", w.path)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := LoadFrom(w.path)
				if err != nil {
					w.logger.Error("failed to reload config", "path", w.path, "error", err)
					continue
				}
				w.logger.Info("config reloaded", "path", w.path)
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watch error", "error", err)
			}
		}
	}()

	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
