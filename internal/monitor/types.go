// Package monitor runs the check cycle: fetch the current listing, diff it
// against the committed cache, announce new products and commit.
//
// At most one cycle runs at a time. A trigger that arrives while a cycle is
// running is dropped and reported as StatusSkipped; it is never queued.
package monitor

import (
	"context"
	"errors"
	"time"

	"listingbot/internal/listing"
	"listingbot/internal/transport"
)

// ErrCheckRunning is returned by operations that cannot overlap a cycle.
var ErrCheckRunning = errors.New("check already running")

// Fetcher returns the complete current listing.
type Fetcher interface {
	Fetch(ctx context.Context) (*listing.Set, error)
}

// Deliverer posts one new product to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, target transport.ChatTarget, s listing.Snapshot) error
}

// CacheStore persists the committed listing.
type CacheStore interface {
	LoadCache(ctx context.Context) (*listing.Set, error)
	SaveCache(ctx context.Context, set *listing.Set) error
}

type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
	TriggerHTTP   Trigger = "http"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusSkipped     Status = "skipped"
	StatusFetchFailed Status = "fetch_failed"
	StatusNoTarget    Status = "no_target"
)

// Request describes one trigger. Fallback is used as the notification
// target for non-timer triggers when no channel is configured.
type Request struct {
	Trigger  Trigger
	Fallback transport.ChatTarget
}

// Result is the outcome of one trigger.
type Result struct {
	RunID   string
	Trigger Trigger
	Status  Status
	Target  transport.ChatTarget

	Fetched    int
	New        int
	Delivered  int
	Failed     int
	Suppressed bool // first run with suppress_first_run: nothing announced

	FetchErr error
	CacheErr error

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// State is a point-in-time view of the monitor.
type State struct {
	Cached  int
	Running bool
	Target  transport.ChatTarget
	LastRun time.Time
	Last    *Result
}

type Config struct {
	// Pacing is the delay between consecutive deliveries in one cycle.
	Pacing time.Duration
	// SuppressFirstRun skips announcements when the committed cache is
	// empty (first start or after a reset); the fetched set is still committed.
	SuppressFirstRun bool
}

// Event payloads published on the bus.
type (
	CheckStarted struct {
		RunID   string  `json:"run_id"`
		Trigger Trigger `json:"trigger"`
	}
	CheckFinished struct {
		RunID     string        `json:"run_id"`
		Trigger   Trigger       `json:"trigger"`
		Status    Status        `json:"status"`
		Fetched   int           `json:"fetched"`
		New       int           `json:"new"`
		Delivered int           `json:"delivered"`
		Failed    int           `json:"failed"`
		Took      time.Duration `json:"took"`
		Error     string        `json:"error,omitempty"`
	}
	ItemNew struct {
		RunID    string           `json:"run_id"`
		Snapshot listing.Snapshot `json:"snapshot"`
		Err      string           `json:"error,omitempty"`
	}
)
