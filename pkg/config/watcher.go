// SPDX-License-Identifier: Apache-2.0
package config

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a configuration file for modification-time changes and
// reloads it, notifying registered listeners with the new configuration.
// Resilience components read their settings at construction; listeners are
// for settings that can change live, such as the log level.
type Watcher struct {
	path     string
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	lastMod   time.Time
	listeners []func(*Config)

	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher creates a watcher for path. interval <= 0 defaults to 2s.
func NewWatcher(path string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		path:     path,
		interval: interval,
		log:      slog.Default(),
		done:     make(chan struct{}),
	}
}

// OnChange registers a listener invoked with each successfully reloaded
// configuration. Register all listeners before Start.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Start begins polling. The owner must call Stop on shutdown.
func (w *Watcher) Start() {
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-ticker.C:
				w.check()
			}
		}
	}()
}

// Stop terminates the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		return
	}
	w.mu.Lock()
	changed := info.ModTime().After(w.lastMod)
	if changed {
		w.lastMod = info.ModTime()
	}
	listeners := w.listeners
	w.mu.Unlock()

	if !changed {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.log.Warn("config.reload.failed",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	w.log.Info("config.reloaded", slog.String("path", w.path))
	for _, fn := range listeners {
		fn(cfg)
	}
}
