package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"listingbot/pkg/logx"
)

const (
	reloadDebounce  = 250 * time.Millisecond
	watchBackoffMin = 250 * time.Millisecond
	watchBackoffMax = 5 * time.Second
)

// Update is a committed config change.
type Update struct {
	Old, New *Config
	// Changed lists the sections that differ, Restart the subset that only
	// takes effect after a restart.
	Changed []string
	Restart []string
}

// NewUpdate describes the change from old to cfg.
func NewUpdate(old, cfg *Config) Update {
	changed, _ := SummarizeConfigChange(old, cfg)
	return Update{Old: old, New: cfg, Changed: changed, Restart: RestartRequired(old, cfg)}
}

// Manager owns the bot config file: it loads it once at startup and, while
// Watch runs, reloads it on change. A reload is committed only after
// Validate and the optional Check accept it.
type Manager struct {
	path  string
	log   logx.Logger
	check func(*Config) error

	mu   sync.RWMutex
	cfg  *Config
	hash uint64

	reloadMu sync.Mutex
	updates  chan Update
}

func NewManager(path string) *Manager {
	return &Manager{path: path, log: logx.Nop(), updates: make(chan Update, 1)}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) {
	if !log.IsZero() {
		m.log = log
	}
}

// SetCheck adds a check that runs after Validate, for rules that need other
// packages (the interval parser, driver settings).
func (m *Manager) SetCheck(fn func(*Config) error) { m.check = fn }

// Updates delivers committed reloads. An update not yet received is merged
// with the next one, so Old is always the config the consumer last saw.
func (m *Manager) Updates() <-chan Update { return m.updates }

// Parse reads the file and fills environment values. Nothing is committed.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	cfg, err := decode(m.path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	applyEnv(cfg)
	return cfg, nil
}

// Load parses, validates and commits the file.
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	if err := m.validate(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", m.path, err)
	}
	m.commit(cfg, hashConfig(cfg))
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) validate(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if m.check != nil {
		return m.check(cfg)
	}
	return nil
}

func (m *Manager) commit(cfg *Config, h uint64) {
	m.mu.Lock()
	m.cfg = cfg
	m.hash = h
	m.mu.Unlock()
}

// Reload re-reads the file and publishes it on Updates. It reports false
// without error when the content did not change.
func (m *Manager) Reload() (bool, error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	cfg, err := m.Parse()
	if err != nil {
		return false, err
	}
	h := hashConfig(cfg)
	m.mu.RLock()
	old, same := m.cfg, h != 0 && h == m.hash
	m.mu.RUnlock()
	if same {
		return false, nil
	}
	if err := m.validate(cfg); err != nil {
		return false, err
	}
	m.commit(cfg, h)

	u := NewUpdate(old, cfg)
	select {
	case pending := <-m.updates:
		u = NewUpdate(pending.Old, cfg)
	default:
	}
	m.updates <- u
	m.log.Debug("config committed",
		logx.String("changed", strings.Join(u.Changed, ",")),
		logx.String("hash", fmt.Sprintf("%x", h)),
	)
	return true, nil
}

// Watch reloads the file on change until ctx ends. A broken watcher is
// recreated with backoff.
func (m *Manager) Watch(ctx context.Context) error {
	backoff := watchBackoffMin
	for {
		healthy, err := m.watchOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if healthy {
			backoff = watchBackoffMin
		}
		m.log.Warn("config watcher stopped, restarting",
			logx.String("path", m.path), logx.Duration("backoff", backoff), logx.Err(err))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, watchBackoffMax)
	}
}

// watchOnce runs one fsnotify watcher on the config directory. healthy is
// true when the watcher started before it failed.
func (m *Manager) watchOnce(ctx context.Context) (healthy bool, err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer w.Close()

	dir, file := filepath.Dir(m.path), filepath.Base(m.path)
	// Watch the directory: editors often replace the file instead of writing it.
	if err := w.Add(dir); err != nil {
		return false, err
	}
	m.log.Debug("config watcher started", logx.String("path", m.path))

	debounce := time.NewTimer(reloadDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case ev, ok := <-w.Events:
			if !ok {
				return true, errors.New("fsnotify events closed")
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) {
				debounce.Reset(reloadDebounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return true, errors.New("fsnotify errors closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				m.log.Warn("config watch overflow, reloading", logx.String("path", m.path))
				debounce.Reset(reloadDebounce)
				continue
			}
			m.log.Warn("config watch error", logx.String("path", m.path), logx.Err(err))
		case <-debounce.C:
			switch ok, err := m.Reload(); {
			case err != nil:
				m.log.Warn("config reload rejected, keeping current", logx.String("path", m.path), logx.Err(err))
			case ok:
				m.log.Info("config change detected", logx.String("path", m.path))
			}
		}
	}
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}
