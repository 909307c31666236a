package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"listingbot/internal/storage"
	"listingbot/internal/transport"
)

// encodeTarget stores a chat target as "chatID" or "chatID:threadID".
func encodeTarget(t transport.ChatTarget) string {
	if t.ThreadID == 0 {
		return strconv.FormatInt(t.ChatID, 10)
	}
	return strconv.FormatInt(t.ChatID, 10) + ":" + strconv.Itoa(t.ThreadID)
}

func decodeTarget(s string) (transport.ChatTarget, error) {
	chat, thread, _ := strings.Cut(strings.TrimSpace(s), ":")
	id, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return transport.ChatTarget{}, fmt.Errorf("invalid chat target %q", s)
	}
	t := transport.ChatTarget{ChatID: id}
	if thread != "" {
		if t.ThreadID, err = strconv.Atoi(thread); err != nil {
			return transport.ChatTarget{}, fmt.Errorf("invalid thread id in %q", s)
		}
	}
	return t, nil
}

// persisted holds operator settings that override the config file.
type persisted struct {
	target      transport.ChatTarget
	hasTarget   bool
	interval    time.Duration
	hasInterval bool
}

func loadSettings(ctx context.Context, st storage.Store) (persisted, error) {
	var p persisted
	if v, ok, err := st.GetSetting(ctx, storage.SettingChannel); err != nil {
		return p, err
	} else if ok {
		t, err := decodeTarget(v)
		if err != nil {
			return p, err
		}
		p.target, p.hasTarget = t, !t.IsZero()
	}
	if v, ok, err := st.GetSetting(ctx, storage.SettingInterval); err != nil {
		return p, err
	} else if ok {
		secs, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return p, fmt.Errorf("invalid stored interval %q", v)
		}
		p.interval, p.hasInterval = time.Duration(secs)*time.Second, true
	}
	return p, nil
}

func saveTarget(ctx context.Context, st storage.Store, t transport.ChatTarget) error {
	return st.PutSetting(ctx, storage.SettingChannel, encodeTarget(t))
}

func saveInterval(ctx context.Context, st storage.Store, d time.Duration) error {
	return st.PutSetting(ctx, storage.SettingInterval, strconv.FormatInt(int64(d/time.Second), 10))
}
