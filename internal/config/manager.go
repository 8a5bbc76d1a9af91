package config

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "listingd/pkg/logx"
)

// Manager loads the config file and watches it for edits.
//
// Hot reload is intentionally narrow: subscribers get the new config and
// decide what is applyable at runtime (logging, notifier knobs). Scheduler
// registrations and intervals are fixed at startup and are not re-applied.
type Manager struct {
	path string
	log  logx.Logger

	mu       sync.RWMutex
	cfg      Config
	loaded   bool
	lastHash uint64

	cbMu      sync.Mutex
	callbacks []func(Config)
}

func NewManager(path string, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{path: path, log: log}
}

// Load parses, validates and commits the config file.
func (m *Manager) Load() (Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return Config{}, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.loaded = true
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
	return cfg, nil
}

// Get returns the last committed config.
func (m *Manager) Get() (Config, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, m.loaded
}

// OnChange registers a callback invoked after every committed reload.
// Callbacks run on the watch goroutine; keep them cheap.
func (m *Manager) OnChange(fn func(Config)) {
	if fn == nil {
		return
	}
	m.cbMu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.cbMu.Unlock()
}

// Watch blocks until ctx is canceled, reloading the file on change.
// Parse or validation failures keep the previous config committed.
func (m *Manager) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory: editors replace files, which drops a watch on
	// the file itself.
	if err := w.Add(filepath.Dir(m.path)); err != nil {
		return err
	}

	file := filepath.Base(m.path)

	// Debounce to avoid reloading partial writes.
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() { m.reload() })
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("config watcher error", logx.Err(err))
		}
	}
}

func (m *Manager) reload() {
	cfg, err := Load(m.path)
	if err != nil {
		m.log.Warn("config reload rejected", logx.String("path", m.path), logx.Err(err))
		return
	}

	h := hashConfig(cfg)
	m.mu.Lock()
	if h != 0 && h == m.lastHash {
		m.mu.Unlock()
		return
	}
	m.cfg = cfg
	m.loaded = true
	m.lastHash = h
	m.mu.Unlock()

	m.log.Info("config reloaded", logx.String("path", m.path))

	m.cbMu.Lock()
	cbs := append(([]func(Config))(nil), m.callbacks...)
	m.cbMu.Unlock()
	for _, fn := range cbs {
		fn(cfg)
	}
}

// hashConfig fingerprints committed content so editor-noise write events
// don't trigger redundant publishes.
func hashConfig(cfg Config) uint64 {
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
