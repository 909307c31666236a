// Package scheduler triggers the check cycle on a fixed interval.
//
// It wraps a robfig/cron instance holding a single "@every <interval>"
// entry. cron runs each trigger in its own goroutine, so a slow check never
// blocks command handling; overlap is resolved by the check cycle itself.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"listingbot/pkg/logx"
)

// Job is invoked on every tick with the context passed to Start.
type Job func(ctx context.Context)

type Service struct {
	mu    sync.Mutex
	log   logx.Logger
	job   Job
	every time.Duration

	ctx   context.Context
	c     *cron.Cron
	entry cron.EntryID
}

func New(every time.Duration, job Job, log logx.Logger) (*Service, error) {
	if err := ValidateInterval(every); err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("scheduler: job is nil")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{log: log, job: job, every: every}, nil
}

// Start registers the interval entry and starts triggering. The first tick
// fires one interval after Start.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx
	s.c = cron.New(cron.WithChain(cron.Recover(cronLogger{s.log})))
	if err := s.addLocked(); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Duration("every", s.every), logx.Time("next", s.nextLocked()))
	return nil
}

// Stop stops triggering and waits for running jobs until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// SetInterval replaces the interval. The next tick is one new interval
// from now.
func (s *Service) SetInterval(d time.Duration) error {
	if err := ValidateInterval(d); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == s.every {
		return nil
	}
	old := s.every
	s.every = d
	if s.c != nil {
		s.c.Remove(s.entry)
		if err := s.addLocked(); err != nil {
			s.every = old
			_ = s.addLocked()
			return err
		}
	}
	s.log.Info("interval changed", logx.Duration("from", old), logx.Duration("to", d))
	return nil
}

func (s *Service) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.every
}

// Next reports the next trigger time; zero when not started.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Service) nextLocked() time.Time {
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

func (s *Service) addLocked() error {
	ctx := s.ctx
	id, err := s.c.AddFunc("@every "+s.every.String(), func() { s.job(ctx) })
	if err != nil {
		return fmt.Errorf("schedule @every %s: %w", s.every, err)
	}
	s.entry = id
	return nil
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kv(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kv(keysAndValues), logx.Err(err))...)
}

func kv(pairs []any) []logx.Field {
	out := make([]logx.Field, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			k = fmt.Sprint(pairs[i])
		}
		out = append(out, logx.Any(k, pairs[i+1]))
	}
	return out
}
