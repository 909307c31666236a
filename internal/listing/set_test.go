package listing

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSetPutKeepsFirstPosition(t *testing.T) {
	s := SetOf(item("1"), item("2"))
	repl := item("1")
	repl.Name = "renamed"
	s.Put(repl)

	if got := strings.Join(s.Keys(), ","); got != "1,2" {
		t.Fatalf("Keys = %s, want 1,2", got)
	}
	if it, _ := s.Get("1"); it.Name != "renamed" {
		t.Fatalf("Put did not replace value: %+v", it)
	}
}

func TestZeroSetPut(t *testing.T) {
	var s Set
	s.Put(item("1"))
	s.Put(item("2"))
	if s.Len() != 2 || !s.Has("2") {
		t.Fatalf("zero set after Put: keys=%v", s.Keys())
	}
}

func TestNilSetReads(t *testing.T) {
	var s *Set
	if s.Len() != 0 || s.Has("x") || s.Keys() != nil || s.Items() != nil {
		t.Fatal("nil set should read as empty")
	}
	if !s.Equal(NewSet(0)) {
		t.Fatal("nil set should equal an empty set")
	}
}

func TestSetJSONRoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 30, 0, 123456000, time.FixedZone("CEST", 2*3600))
	in := SetOf(
		Snapshot{ID: "b", Name: "Pikachu Plush", Price: "29.99", URL: "https://example.com/b", Image: "https://example.com/b.png", Description: "soft", CapturedAt: at},
		Snapshot{ID: "a", Name: "Unknown", Price: NoPrice, CapturedAt: at},
	)
	b, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Index(string(b), `"b"`) > strings.Index(string(b), `"a"`) {
		t.Fatalf("keys not written in insertion order:\n%s", b)
	}

	out := NewSet(0)
	if err := json.Unmarshal(b, out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !in.Equal(out) {
		t.Fatalf("round trip mismatch:\n in=%+v\nout=%+v", in.Items(), out.Items())
	}
	if strings.Join(out.Keys(), ",") != "b,a" {
		t.Fatalf("order lost: %v", out.Keys())
	}
}

func TestSetUnmarshalLegacyFile(t *testing.T) {
	raw := `{
  "101": {"name": "Eevee Figure", "price": 12.5, "url": "", "image": "", "description": "", "timestamp": "2025-01-02T03:04:05.678901"},
  "102": {"name": "Deck Box", "price": null, "url": "", "image": "", "description": "", "timestamp": "2025-01-02T03:04:05"}
}`
	s := NewSet(0)
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	a, _ := s.Get("101")
	if a.Price != "12.5" || a.CapturedAt.Nanosecond() != 678901000 {
		t.Fatalf("unexpected snapshot %+v", a)
	}
	b, _ := s.Get("102")
	if b.Price != NoPrice || b.HasPrice() {
		t.Fatalf("null price should read as %q, got %q", NoPrice, b.Price)
	}
}

func TestSetUnmarshalRejectsGarbage(t *testing.T) {
	for _, raw := range []string{`[]`, `{"1": 5}`, `{"1": {"timestamp": "yesterday"}}`, `{"1": {`} {
		if err := json.Unmarshal([]byte(raw), NewSet(0)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestText(t *testing.T) {
	tests := map[string]string{
		``:           "def",
		`null`:       "def",
		`"12.00"`:    "12.00",
		`12`:         "12",
		`true`:       "true",
		`{"a": 1}`:   `{"a":1}`,
		` "spaced" `: "spaced",
	}
	for in, want := range tests {
		if got := Text(json.RawMessage(in), "def"); got != want {
			t.Errorf("Text(%q) = %q, want %q", in, got, want)
		}
	}
}
