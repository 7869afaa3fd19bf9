package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Reload is one accepted edit of the watched config file.
type Reload struct {
	Old, New *Config
	Diff     ConfigDiff
}

// Watcher polls the stockmcp config file. An edit that parses, validates and
// changes at least one setting replaces [Watcher.Current] and is handed to
// the callback. An invalid edit is logged and the last good config stays
// current, so a typo never takes the running server's settings away.
type Watcher struct {
	path     string
	interval time.Duration
	onReload func(Reload)

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads the config at path and starts polling it in a background
// goroutine. onReload may be nil. Call [Watcher.Stop] to end polling.
func NewWatcher(path string, onReload func(Reload), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, hash, mtime, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check looks at the file once. It reports the reload it applied, if any,
// after the callback has returned.
func (w *Watcher) Check() (Reload, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return Reload{}, false
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()
	if info.ModTime().Equal(mtime) {
		return Reload{}, false
	}

	cfg, hash, newMtime, err := w.load()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return Reload{}, false
	}

	w.mu.Lock()
	w.lastMtime = newMtime
	if hash == w.lastHash {
		// touched, not edited
		w.mu.Unlock()
		return Reload{}, false
	}
	w.lastHash = hash
	r := Reload{Old: w.current, New: cfg, Diff: Diff(w.current, cfg)}
	w.current = cfg
	w.mu.Unlock()

	if !r.Diff.Changed() {
		slog.Debug("config watcher: file edited without setting changes", "path", w.path)
		return Reload{}, false
	}
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"log_level", cfg.Server.LogLevel,
		"restart_required", strings.Join(r.Diff.RestartRequired(), ","))

	// Outside the lock so the callback may call Current.
	if w.onReload != nil {
		w.onReload(r)
	}
	return r, true
}

// load reads, parses and validates the file and returns the config with the
// file's SHA-256 and modification time.
func (w *Watcher) load() (*Config, [sha256.Size]byte, time.Time, error) {
	var zero [sha256.Size]byte

	info, err := os.Stat(w.path)
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zero, time.Time{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
