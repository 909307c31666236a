package config

import (
	"reflect"
	"strings"

	"listingbot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured fields for logging. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Monitor != newCfg.Monitor {
		changed = append(changed, "monitor")
		attrs = append(attrs,
			logx.String("monitor.api_url", strings.TrimSpace(newCfg.Monitor.APIURL)),
			logx.String("monitor.interval", strings.TrimSpace(newCfg.Monitor.Interval)),
			logx.String("monitor.http_timeout", strings.TrimSpace(newCfg.Monitor.HTTPTimeout)),
			logx.String("monitor.notify_pacing", strings.TrimSpace(newCfg.Monitor.NotifyPacing)),
			logx.Bool("monitor.suppress_first_run", newCfg.Monitor.SuppressFirstRun),
			logx.Int64("monitor.channel_id", newCfg.Monitor.ChannelID),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.String("storage.path", strings.TrimSpace(newCfg.Storage.Path)),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
			logx.Bool("http.token_set", strings.TrimSpace(newCfg.HTTP.Token) != ""),
			logx.Bool("http.pprof", newCfg.HTTP.Pprof),
		)
	}
	return changed, attrs
}

// RestartRequired lists changed sections that are only applied at startup.
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		out = append(out, "telegram")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	if oldCfg.Monitor.APIURL != newCfg.Monitor.APIURL ||
		oldCfg.Monitor.HTTPTimeout != newCfg.Monitor.HTTPTimeout ||
		oldCfg.Monitor.UserAgent != newCfg.Monitor.UserAgent ||
		oldCfg.Monitor.Footer != newCfg.Monitor.Footer ||
		oldCfg.Monitor.DeliveryRetries != newCfg.Monitor.DeliveryRetries {
		out = append(out, "monitor.fetch")
	}
	return out
}
