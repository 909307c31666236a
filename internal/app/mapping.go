package app

import (
	"fmt"
	"strings"
	"time"

	"listingbot/internal/config"
	"listingbot/internal/fetcher"
	"listingbot/internal/httpapi"
	"listingbot/internal/monitor"
	"listingbot/internal/notifier"
	"listingbot/internal/scheduler"
	"listingbot/internal/storage"
	"listingbot/internal/transport"
	"listingbot/pkg/logx"
)

const defaultInterval = 300 * time.Second

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			path = "./listingbot.db"
		}
		busy, err := sc.BusyTimeoutValue()
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapFetcherConfig(cfg *config.Config) (fetcher.Config, error) {
	timeout, err := cfg.Monitor.HTTPTimeoutValue()
	if err != nil {
		return fetcher.Config{}, err
	}
	return fetcher.Config{
		URL:       strings.TrimSpace(cfg.Monitor.APIURL),
		Timeout:   timeout,
		UserAgent: cfg.Monitor.UserAgent,
	}, nil
}

func mapMonitorConfig(cfg *config.Config) (monitor.Config, error) {
	pacing, err := cfg.Monitor.PacingValue()
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{Pacing: pacing, SuppressFirstRun: cfg.Monitor.SuppressFirstRun}, nil
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		Footer:   cfg.Monitor.Footer,
		RetryMax: cfg.Monitor.DeliveryRetries,
	}
}

func mapHTTPConfig(cfg *config.Config) httpapi.Config {
	return httpapi.Config{
		Enabled: cfg.HTTP.Enabled,
		Addr:    cfg.HTTP.Addr,
		Token:   cfg.HTTP.Token,
		Pprof:   cfg.HTTP.Pprof,
	}
}

// configInterval returns the configured check interval (default 5 minutes).
func configInterval(cfg *config.Config) (time.Duration, error) {
	raw := strings.TrimSpace(cfg.Monitor.Interval)
	if raw == "" {
		return defaultInterval, nil
	}
	d, err := scheduler.ParseInterval(raw)
	if err != nil {
		return 0, fmt.Errorf("monitor.interval: %w", err)
	}
	if err := scheduler.ValidateInterval(d); err != nil {
		return 0, fmt.Errorf("monitor.interval: %w", err)
	}
	return d, nil
}

func configTarget(cfg *config.Config) transport.ChatTarget {
	return transport.ChatTarget{ChatID: cfg.Monitor.ChannelID, ThreadID: cfg.Monitor.ThreadID}
}

// checkConfig runs after config.Validate at startup and before a hot reload
// is committed.
func checkConfig(cfg *config.Config) error {
	if _, err := configInterval(cfg); err != nil {
		return err
	}
	if _, err := mapMonitorConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	_, err := mapFetcherConfig(cfg)
	return err
}
