// Package fetcher retrieves the current product listing from the product API.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"listingbot/internal/listing"
	"listingbot/pkg/logx"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxBodyBytes     = 16 << 20
)

type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string

	// MinGap is the minimum spacing between requests; Burst allows short
	// bursts above it (manual checks right after a timer tick).
	MinGap time.Duration
	Burst  int
}

// Client fetches listings over HTTP. It never retries; the caller's
// schedule is the retry policy.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
	now     func() time.Time
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("fetcher: api url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MinGap <= 0 {
		cfg.MinGap = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.MinGap), cfg.Burst),
		log:     log,
		now:     time.Now,
	}, nil
}

type payload struct {
	Products *[]json.RawMessage `json:"products"`
}

type product struct {
	ID          json.RawMessage `json:"id"`
	SKU         json.RawMessage `json:"sku"`
	Name        json.RawMessage `json:"name"`
	Price       json.RawMessage `json:"price"`
	URL         json.RawMessage `json:"url"`
	Image       json.RawMessage `json:"image"`
	Description json.RawMessage `json:"description"`
}

// Fetch returns the complete current listing. Every error is a *FetchError.
func (c *Client) Fetch(ctx context.Context) (*listing.Set, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Kind: KindTimeout, Err: fmt.Errorf("rate limit wait: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindHTTP, Err: err}
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{Kind: KindHTTP, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{Kind: classify(err), Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &FetchError{Kind: KindPayload, Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}

	set, skipped, err := Parse(body, c.now())
	if err != nil {
		return nil, &FetchError{Kind: KindPayload, Err: err}
	}
	c.log.Debug("listing fetched",
		logx.Int("status", resp.StatusCode),
		logx.Int("products", set.Len()),
		logx.Int("skipped", skipped),
		logx.Duration("took", time.Since(start)),
	)
	return set, nil
}

// Parse decodes a product API document shaped {"products": [...]}.
// Products without a usable id or sku are skipped and counted.
func Parse(body []byte, capturedAt time.Time) (set *listing.Set, skipped int, err error) {
	var doc payload
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode: %w", err)
	}
	if doc.Products == nil {
		return nil, 0, errors.New(`missing "products" array`)
	}

	set = listing.NewSet(len(*doc.Products))
	for i, raw := range *doc.Products {
		var p product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, 0, fmt.Errorf("product %d: %w", i, err)
		}
		id := productID(p)
		if id == "" {
			skipped++
			continue
		}
		set.Put(listing.Snapshot{
			ID:          id,
			Name:        listing.Text(p.Name, "Unknown"),
			Price:       listing.Text(p.Price, listing.NoPrice),
			URL:         listing.Text(p.URL, ""),
			Image:       listing.Text(p.Image, ""),
			Description: listing.Text(p.Description, ""),
			CapturedAt:  capturedAt,
		})
	}
	return set, skipped, nil
}

// productID prefers id and falls back to sku when id is missing or falsy
// (null, "", 0, false).
func productID(p product) string {
	for _, raw := range []json.RawMessage{p.ID, p.SKU} {
		v := strings.TrimSpace(listing.Text(raw, ""))
		switch v {
		case "", "0", "false":
			continue
		}
		return v
	}
	return ""
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindHTTP
}
