package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Validate checks fields that do not need other packages to interpret.
// The check interval is validated by the scheduler's parser.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is empty (set it in the config or LISTINGBOT_TOKEN)"))
	}
	if g := strings.TrimSpace(c.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("telegram.group_log: invalid chat id %q", g))
		}
	}
	if _, err := c.Telegram.PollTimeoutValue(); err != nil {
		errs = append(errs, err)
	}

	if u := strings.TrimSpace(c.Monitor.APIURL); u == "" {
		errs = append(errs, errors.New("monitor.api_url is empty"))
	} else if pu, err := url.Parse(u); err != nil || (pu.Scheme != "http" && pu.Scheme != "https") || pu.Host == "" {
		errs = append(errs, fmt.Errorf("monitor.api_url: invalid url %q", u))
	}
	if _, err := c.Monitor.HTTPTimeoutValue(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Monitor.PacingValue(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Storage.BusyTimeoutValue(); err != nil {
		errs = append(errs, err)
	}
	if c.Monitor.DeliveryRetries < 0 {
		errs = append(errs, errors.New("monitor.delivery_retries must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

// GroupLogID returns the parsed telegram.group_log chat id, 0 when unset.
func (c *Config) GroupLogID() int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(c.Telegram.GroupLog), 10, 64)
	return id
}
