package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"listingbot/internal/eventbus"
	"listingbot/internal/listing"
	"listingbot/internal/transport"
	"listingbot/pkg/logx"
)

const defaultPacing = time.Second

type Monitor struct {
	cfg    Config
	fetch  Fetcher
	notify Deliverer
	store  CacheStore
	bus    eventbus.Bus
	log    logx.Logger

	running atomic.Bool

	mu       sync.Mutex
	cache    *listing.Set
	target   transport.ChatTarget
	last     *Result
	lastRun  time.Time
	lifetime context.Context
	limiter  *rate.Limiter

	now func() time.Time
}

func New(cfg Config, f Fetcher, d Deliverer, store CacheStore, bus eventbus.Bus, log logx.Logger) *Monitor {
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		cfg:    cfg,
		fetch:  f,
		notify: d,
		store:  store,
		bus:    bus,
		log:    log,
		cache:   listing.NewSet(0),
		limiter: newLimiter(cfg.Pacing),
		now:     time.Now,
	}
}

// newLimiter spaces sends one pacing apart. Zero pacing disables the limit.
func newLimiter(pacing time.Duration) *rate.Limiter {
	if pacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(pacing), 1)
}

// SetLifetime bounds every later cycle by ctx instead of the caller's context.
// A cycle is interrupted only when ctx ends, typically at shutdown.
func (m *Monitor) SetLifetime(ctx context.Context) {
	m.mu.Lock()
	m.lifetime = ctx
	m.mu.Unlock()
}

// cycleContext returns the context a cycle runs on: the monitor lifetime when
// set, otherwise the caller's context with its cancellation removed.
func (m *Monitor) cycleContext(ctx context.Context) context.Context {
	m.mu.Lock()
	life := m.lifetime
	m.mu.Unlock()
	if life != nil {
		return life
	}
	return context.WithoutCancel(ctx)
}

// DefaultConfig returns a one second delivery pacing.
func DefaultConfig() Config { return Config{Pacing: defaultPacing} }

// Load replaces the in-memory cache with the stored one. A corrupt or
// unreadable cache leaves the monitor with an empty cache; the error is
// returned for logging only.
func (m *Monitor) Load(ctx context.Context) error {
	set, err := m.store.LoadCache(ctx)
	if set == nil {
		set = listing.NewSet(0)
	}
	m.mu.Lock()
	m.cache = set
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	m.log.Info("cache loaded", logx.Int("items", set.Len()))
	return nil
}

func (m *Monitor) SetTarget(t transport.ChatTarget) {
	m.mu.Lock()
	m.target = t
	m.mu.Unlock()
}

func (m *Monitor) Target() transport.ChatTarget {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.target
}

func (m *Monitor) SetConfig(cfg Config) {
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	m.mu.Lock()
	if cfg.Pacing != m.cfg.Pacing {
		m.limiter = newLimiter(cfg.Pacing)
	}
	m.cfg = cfg
	m.mu.Unlock()
}

// Running reports whether a cycle is in progress.
func (m *Monitor) Running() bool { return m.running.Load() }

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{
		Cached:  m.cache.Len(),
		Running: m.running.Load(),
		Target:  m.target,
		LastRun: m.lastRun,
	}
	if m.last != nil {
		r := *m.last
		st.Last = &r
	}
	return st
}

// Check runs one cycle unless another is in progress. Cancelling ctx does not
// interrupt the cycle; see SetLifetime.
func (m *Monitor) Check(ctx context.Context, req Request) Result {
	if req.Trigger == "" {
		req.Trigger = TriggerTimer
	}
	if !m.running.CompareAndSwap(false, true) {
		m.log.Debug("check skipped, already running", logx.String("trigger", string(req.Trigger)))
		m.publish(eventbus.TypeCheckSkipped, CheckStarted{Trigger: req.Trigger})
		now := m.now()
		return Result{Trigger: req.Trigger, Status: StatusSkipped, StartedAt: now, FinishedAt: now}
	}
	defer m.running.Store(false)

	res := m.run(m.cycleContext(ctx), req)

	m.mu.Lock()
	r := res
	m.last = &r
	m.lastRun = res.FinishedAt
	m.mu.Unlock()
	return res
}

func (m *Monitor) run(ctx context.Context, req Request) Result {
	m.mu.Lock()
	cfg := m.cfg
	target := m.target
	previous := m.cache
	limiter := m.limiter
	m.mu.Unlock()

	res := Result{
		RunID:     uuid.NewString(),
		Trigger:   req.Trigger,
		StartedAt: m.now(),
	}
	log := m.log.With(logx.String("run", res.RunID), logx.String("trigger", string(req.Trigger)))

	if target.IsZero() && req.Trigger != TriggerTimer {
		target = req.Fallback
	}
	res.Target = target
	if target.IsZero() {
		log.Debug("check skipped, no notification target")
		res.Status = StatusNoTarget
		res.FinishedAt = m.now()
		return res
	}

	m.publish(eventbus.TypeCheckStarted, CheckStarted{RunID: res.RunID, Trigger: req.Trigger})
	defer func() { m.publish(eventbus.TypeCheckFinished, finished(res)) }()

	current, err := m.fetch.Fetch(ctx)
	if err != nil {
		log.Warn("fetch failed", logx.Err(err))
		res.Status = StatusFetchFailed
		res.FetchErr = err
		res.FinishedAt = m.now()
		return res
	}
	res.Fetched = current.Len()

	fresh := listing.Diff(current, previous)
	res.New = len(fresh)

	if len(fresh) > 0 && cfg.SuppressFirstRun && previous.Len() == 0 {
		log.Info("first run, announcements suppressed", logx.Int("new", len(fresh)))
		res.Suppressed = true
		fresh = nil
	}

	commit := current
	for i, s := range fresh {
		if err := limiter.Wait(ctx); err != nil {
			res.Failed += len(fresh) - i
			log.Warn("delivery interrupted", logx.Int("remaining", len(fresh)-i), logx.Err(err))
			commit = without(current, fresh[i:])
			break
		}
		err := m.notify.Deliver(ctx, target, s)
		ev := ItemNew{RunID: res.RunID, Snapshot: s}
		if err != nil {
			res.Failed++
			ev.Err = err.Error()
			log.Warn("delivery failed", logx.String("id", s.ID), logx.Err(err))
		} else {
			res.Delivered++
		}
		m.publish(eventbus.TypeItemNew, ev)
	}

	// The commit still runs when shutdown interrupted delivery.
	if err := m.store.SaveCache(context.WithoutCancel(ctx), commit); err != nil {
		res.CacheErr = err
		log.Error("cache commit failed, will retry next cycle", logx.Err(err))
	}
	m.mu.Lock()
	m.cache = commit
	m.mu.Unlock()

	res.Status = StatusOK
	res.FinishedAt = m.now()
	log.Info("check finished",
		logx.Int("fetched", res.Fetched),
		logx.Int("new", res.New),
		logx.Int("delivered", res.Delivered),
		logx.Int("failed", res.Failed),
		logx.Duration("took", res.Duration()),
	)
	return res
}

// Reset empties the cache and persists it. It refuses to run during a cycle.
func (m *Monitor) Reset(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrCheckRunning
	}
	defer m.running.Store(false)

	empty := listing.NewSet(0)
	if err := m.store.SaveCache(ctx, empty); err != nil {
		return fmt.Errorf("reset cache: %w", err)
	}
	m.mu.Lock()
	m.cache = empty
	m.mu.Unlock()
	m.publish(eventbus.TypeCacheReset, nil)
	m.log.Info("cache reset")
	return nil
}

func (m *Monitor) publish(typ string, data any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Time: m.now(), Data: data})
}

func finished(r Result) CheckFinished {
	ev := CheckFinished{
		RunID:     r.RunID,
		Trigger:   r.Trigger,
		Status:    r.Status,
		Fetched:   r.Fetched,
		New:       r.New,
		Delivered: r.Delivered,
		Failed:    r.Failed,
		Took:      r.Duration(),
	}
	if err := errors.Join(r.FetchErr, r.CacheErr); err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// without returns set minus the given snapshots, so undelivered items stay new.
func without(set *listing.Set, drop []listing.Snapshot) *listing.Set {
	skip := make(map[string]struct{}, len(drop))
	for _, s := range drop {
		skip[s.ID] = struct{}{}
	}
	out := listing.NewSet(set.Len())
	for _, it := range set.Items() {
		if _, ok := skip[it.ID]; !ok {
			out.Put(it)
		}
	}
	return out
}
