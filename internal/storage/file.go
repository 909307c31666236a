package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"listingbot/internal/listing"
	"listingbot/pkg/logx"
)

// fileStore is the dependency-free backend.
//
// Files:
//   - <path>                  (listing cache, JSON object keyed by product id)
//   - <prefix>.settings.json  (settings, rewritten on change)
//   - <prefix>.audit.jsonl    (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	cachePath    string
	settingsPath string
	auditFile    *os.File
	settings     map[string]string
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "./listing_cache.json"
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	base := filepath.Base(path)
	prefix := filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base)))

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		cachePath:    path,
		settingsPath: prefix + ".settings.json",
		auditFile:    af,
		settings:     map[string]string{},
	}
	if err := s.loadSettings(); err != nil {
		// Settings only override config defaults; losing them is not fatal.
		log.Warn("settings file unreadable; using config defaults", logx.String("path", s.settingsPath), logx.Err(err))
	}
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) LoadCache(ctx context.Context) (*listing.Set, error) {
	_ = ctx
	b, err := os.ReadFile(s.cachePath)
	if errors.Is(err, fs.ErrNotExist) {
		return listing.NewSet(0), nil
	}
	if err != nil {
		return listing.NewSet(0), fmt.Errorf("read cache %s: %w", s.cachePath, err)
	}
	set := listing.NewSet(0)
	if err := json.Unmarshal(b, set); err != nil {
		return listing.NewSet(0), fmt.Errorf("%w: %s: %v", ErrCacheCorrupt, s.cachePath, err)
	}
	return set, nil
}

func (s *fileStore) SaveCache(ctx context.Context, set *listing.Set) error {
	_ = ctx
	if set == nil {
		set = listing.NewSet(0)
	}
	b, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrCacheWrite, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.cachePath, append(b, '\n')); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	return nil
}

func (s *fileStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *fileStore) PutSetting(ctx context.Context, key, value string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("setting key is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.settings[key]
	s.settings[key] = value
	b, err := json.MarshalIndent(s.settings, "", "  ")
	if err == nil {
		err = writeFileAtomic(s.settingsPath, b)
	}
	if err != nil {
		if had {
			s.settings[key] = prev
		} else {
			delete(s.settings, key)
		}
		return err
	}
	return nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) loadSettings() error {
	b, err := os.ReadFile(s.settingsPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	s.settings = m
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
