package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for duration fields left empty.
const (
	DefaultPollTimeout  = 10 * time.Second
	DefaultHTTPTimeout  = 10 * time.Second
	DefaultNotifyPacing = time.Second
	DefaultBusyTimeout  = time.Second
)

// PollTimeoutValue returns telegram.poll_timeout.
func (t TelegramConfig) PollTimeoutValue() (time.Duration, error) {
	return duration("telegram.poll_timeout", t.PollTimeout, DefaultPollTimeout, false)
}

// HTTPTimeoutValue returns monitor.http_timeout, the per-request API timeout.
func (m MonitorConfig) HTTPTimeoutValue() (time.Duration, error) {
	return duration("monitor.http_timeout", m.HTTPTimeout, DefaultHTTPTimeout, false)
}

// PacingValue returns monitor.notify_pacing. An explicit "0" turns pacing off.
func (m MonitorConfig) PacingValue() (time.Duration, error) {
	return duration("monitor.notify_pacing", m.NotifyPacing, DefaultNotifyPacing, true)
}

// BusyTimeoutValue returns storage.busy_timeout (sqlite only).
func (s StorageConfig) BusyTimeoutValue() (time.Duration, error) {
	return duration("storage.busy_timeout", s.BusyTimeout, DefaultBusyTimeout, false)
}

func duration(field, raw string, def time.Duration, zeroOK bool) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: %q is not a duration like \"10s\"", field, raw)
	case d < 0:
		return 0, fmt.Errorf("%s: must not be negative", field)
	case d == 0 && !zeroOK:
		return def, nil
	}
	return d, nil
}
