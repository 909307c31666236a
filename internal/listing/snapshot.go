package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NoPrice is the display value used when a product carries no price.
const NoPrice = "N/A"

// Snapshot is one product as observed by a single fetch.
type Snapshot struct {
	ID          string
	Name        string
	Price       string
	URL         string
	Image       string
	Description string
	CapturedAt  time.Time
}

// HasPrice reports whether the product advertised a price.
func (s Snapshot) HasPrice() bool {
	p := strings.TrimSpace(s.Price)
	return p != "" && p != NoPrice
}

// Equal compares every field; timestamps are compared as instants.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.ID == o.ID &&
		s.Name == o.Name &&
		s.Price == o.Price &&
		s.URL == o.URL &&
		s.Image == o.Image &&
		s.Description == o.Description &&
		s.CapturedAt.Equal(o.CapturedAt)
}

// record is the on-disk shape of a snapshot value; the id is the map key.
type record struct {
	Name        string          `json:"name"`
	Price       json.RawMessage `json:"price"`
	URL         string          `json:"url"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Timestamp   string          `json:"timestamp"`
}

func (s Snapshot) record() record {
	price, _ := json.Marshal(s.Price)
	r := record{
		Name:        s.Name,
		Price:       price,
		URL:         s.URL,
		Image:       s.Image,
		Description: s.Description,
	}
	if !s.CapturedAt.IsZero() {
		r.Timestamp = s.CapturedAt.Format(time.RFC3339Nano)
	}
	return r
}

func (r record) snapshot(id string) (Snapshot, error) {
	at, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return Snapshot{}, fmt.Errorf("product %q: %w", id, err)
	}
	return Snapshot{
		ID:          id,
		Name:        r.Name,
		Price:       Text(r.Price, NoPrice),
		URL:         r.URL,
		Image:       r.Image,
		Description: r.Description,
		CapturedAt:  at,
	}, nil
}

// timestamp layouts accepted when reading, most specific first. The naive
// layout covers files written without a zone offset; those are read as local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 capture time. An empty string is the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for i, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Text renders a loosely typed JSON value as display text.
// Strings are returned verbatim, numbers keep their literal form, null or
// missing values yield def, anything else is returned as compact JSON.
func Text(raw json.RawMessage, def string) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return def
		}
		return s
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return def
		}
		return buf.String()
	default:
		return string(raw)
	}
}
