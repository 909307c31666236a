package scheduler

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinInterval is the shortest accepted check interval.
const MinInterval = 60 * time.Second

// ErrIntervalTooShort is returned for intervals below MinInterval. Short
// values are rejected, never clamped.
var ErrIntervalTooShort = errors.New("interval must be at least 60 seconds")

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseInterval parses an interval string.
//
// Supported forms:
//   - plain seconds: "300"
//   - Go duration: "5m", "1h30m"
//   - HH:MM: "00:05" (5 minutes), "02:30" (2 hours 30 minutes)
//
// The minimum is not enforced here; see ValidateInterval.
func ParseInterval(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("interval required")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("interval must be > 0")
		}
		if n > int64(1<<31) {
			return 0, fmt.Errorf("interval %q too large", raw)
		}
		return time.Duration(n) * time.Second, nil
	}
	if reHHMM.MatchString(s) {
		return parseHHMM(s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q (use seconds like '300', HH:MM like '00:05', or duration like '5m')", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}

// ValidateInterval rejects intervals below MinInterval.
func ValidateInterval(d time.Duration) error {
	if d < MinInterval {
		return fmt.Errorf("%w (got %s)", ErrIntervalTooShort, d)
	}
	return nil
}

func parseHHMM(v string) (time.Duration, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if mm > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", v)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	if d <= 0 {
		return 0, fmt.Errorf("interval must be > 0")
	}
	return d, nil
}
