package storage

import (
	"context"
	"errors"
	"time"

	"listingbot/internal/listing"
)

var (
	// ErrCacheCorrupt means the stored cache could not be decoded. Load
	// still returns a usable empty set alongside it.
	ErrCacheCorrupt = errors.New("cache corrupt")
	// ErrCacheWrite means the cache could not be persisted.
	ErrCacheWrite = errors.New("cache write failed")
	ErrClosed     = errors.New("storage closed")
)

// Setting keys.
const (
	SettingChannel  = "notify.channel"
	SettingInterval = "check.interval"
)

// Store is the persistence API used by the app and the monitor.
type Store interface {
	// LoadCache never returns a nil set. A missing cache is empty with a
	// nil error; a corrupt one is empty with an error wrapping ErrCacheCorrupt.
	LoadCache(ctx context.Context) (*listing.Set, error)
	// SaveCache replaces the stored cache as a whole. Errors wrap ErrCacheWrite.
	SaveCache(ctx context.Context, set *listing.Set) error

	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	PutSetting(ctx context.Context, key, value string) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Config configures storage.
//
// Driver values:
//   - "file": Path is the cache JSON file; settings and audit files sit next to it
//   - "sqlite": Path is the database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records an operator action.
type AuditEntry struct {
	At            time.Time `json:"at"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username,omitempty"`
	ChatID        int64     `json:"chat_id"`
	ThreadID      int       `json:"thread_id,omitempty"`
	Action        string    `json:"action"`
	Target        string    `json:"target,omitempty"`
	OK            bool      `json:"ok"`
	Error         string    `json:"error,omitempty"`
}
