package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"listingbot/pkg/logx"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"300", 5 * time.Minute, false},
		{" 60 ", time.Minute, false},
		{"5m", 5 * time.Minute, false},
		{"1h30m", 90 * time.Minute, false},
		{"00:05", 5 * time.Minute, false},
		{"02:30", 150 * time.Minute, false},
		{"30", 30 * time.Second, false},
		{"", 0, true},
		{"0", 0, true},
		{"-5", 0, true},
		{"00:00", 0, true},
		{"01:75", 0, true},
		{"soon", 0, true},
		{"-1m", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if (err != nil) != tt.err {
			t.Fatalf("ParseInterval(%q) err = %v, want err=%v", tt.in, err, tt.err)
		}
		if got != tt.want {
			t.Fatalf("ParseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateIntervalRejectsShort(t *testing.T) {
	if err := ValidateInterval(59 * time.Second); !errors.Is(err, ErrIntervalTooShort) {
		t.Fatalf("err = %v", err)
	}
	if err := ValidateInterval(MinInterval); err != nil {
		t.Fatalf("60s rejected: %v", err)
	}
}

func TestSetIntervalNeverClamps(t *testing.T) {
	s, err := New(5*time.Minute, func(context.Context) {}, logx.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.SetInterval(30 * time.Second); !errors.Is(err, ErrIntervalTooShort) {
		t.Fatalf("err = %v", err)
	}
	if got := s.Interval(); got != 5*time.Minute {
		t.Fatalf("interval changed to %v", got)
	}
}

func TestNewRejectsShortInterval(t *testing.T) {
	if _, err := New(10*time.Second, func(context.Context) {}, logx.Nop()); !errors.Is(err, ErrIntervalTooShort) {
		t.Fatalf("err = %v", err)
	}
}

func TestStartSchedulesAndReschedules(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run")
	got := make(chan any, 1)
	s, err := New(time.Hour, func(ctx context.Context) { got <- ctx.Value(key{}) }, logx.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatalf("next before start should be zero")
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	if until := time.Until(s.Next()); until < 59*time.Minute || until > time.Hour+time.Second {
		t.Fatalf("next in %v, want ~1h", until)
	}

	if err := s.SetInterval(2 * time.Minute); err != nil {
		t.Fatalf("set interval: %v", err)
	}
	if until := time.Until(s.Next()); until > 2*time.Minute+time.Second {
		t.Fatalf("next in %v after reschedule, want <= 2m", until)
	}

	// Run the registered job directly instead of waiting for the tick.
	s.mu.Lock()
	job := s.c.Entry(s.entry).Job
	s.mu.Unlock()
	job.Run()
	if v := <-got; v != "run" {
		t.Fatalf("job ctx value = %v", v)
	}
}
