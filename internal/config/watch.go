package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher holds the live Config for a running process and swaps it
// atomically when the backing file changes and auto_reload is set
// (spec.md §6 "auto_reload"), grounded on daemon.go's
// startConfigWatcher/watchConfigFile/handleConfigChange fsnotify loop.
type Watcher struct {
	path string

	mu      sync.RWMutex
	current *Config
	lastMod time.Time

	fsw *fsnotify.Watcher
}

// Load reads and parses path once, with no watching. If a sibling
// "<name>.defaults.yaml" file exists (defaultsSiblingPath), its
// TilesetDefaults are merged underneath the XML document before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var defaults *TilesetDefaults
	if _, err := os.Stat(defaultsSiblingPath(path)); err == nil {
		defaults, err = LoadTilesetDefaults(defaultsSiblingPath(path))
		if err != nil {
			return nil, err
		}
	}
	return ParseWithDefaults(data, defaults)
}

// NewWatcher loads path and, if the resulting Config has AutoReload set,
// arms an fsnotify watch on it. Callers that don't want reload behavior
// should use Load directly instead.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	w := &Watcher{path: path, current: cfg, lastMod: info.ModTime()}
	if !cfg.AutoReload {
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.fsw = fsw
	return w, nil
}

// Current returns the most recently loaded Config. Safe for concurrent use.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run watches for file changes until ctx is canceled. It returns
// immediately if the loaded config did not enable auto_reload.
func (w *Watcher) Run(ctx context.Context) {
	if w.fsw == nil {
		return
	}
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("config: watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Write != fsnotify.Write {
		return
	}

	info, err := os.Stat(w.path)
	if err != nil {
		logrus.WithError(err).Warn("config: stat during reload")
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}

	logrus.WithField("path", w.path).Info("config: file changed, reloading")
	if err := w.reload(); err != nil {
		logrus.WithError(err).Error("config: reload failed, keeping previous configuration")
		return
	}
	w.lastMod = info.ModTime()
	logrus.Info("config: reload succeeded")
}

func (w *Watcher) reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	return nil
}
