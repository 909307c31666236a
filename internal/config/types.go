package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("10s", "2m"). The check interval also
// accepts plain seconds ("300") and HH:MM ("00:05").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Monitor  MonitorConfig  `json:"monitor"`
	Storage  StorageConfig  `json:"storage"`
	HTTP     HTTPConfig     `json:"http"`
}

type TelegramConfig struct {
	// Token may be left empty and supplied via LISTINGBOT_TOKEN or
	// TELEGRAM_BOT_TOKEN (a .env file is honored).
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id that receives mirrored warnings and errors.
	GroupLog    string `json:"group_log"`
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// MonitorConfig controls the listing check cycle.
//
// Defaults (when fields are omitted/zero):
//   - interval: "300" (5 minutes, minimum 60 seconds)
//   - http_timeout: "10s"
//   - notify_pacing: "1s"
//   - suppress_first_run: false
//
// channel_id/thread_id seed the notification target; a target set with
// /setchannel is persisted and takes precedence.
type MonitorConfig struct {
	APIURL           string `json:"api_url"`
	Interval         string `json:"interval"`
	HTTPTimeout      string `json:"http_timeout"`
	NotifyPacing     string `json:"notify_pacing"`
	SuppressFirstRun bool   `json:"suppress_first_run"`
	ChannelID        int64  `json:"channel_id"`
	ThreadID         int    `json:"thread_id"`
	UserAgent        string `json:"user_agent,omitempty"`
	Footer           string `json:"footer,omitempty"`
	DeliveryRetries  int    `json:"delivery_retries,omitempty"`
}

// StorageConfig selects the cache store.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./listing_cache.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// HTTPConfig controls the optional status endpoint.
//
// Prefer binding to localhost. When Token is set, POST /check and
// GET /status require "Authorization: Bearer <token>".
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8080"
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
}
