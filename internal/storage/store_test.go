package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"listingbot/internal/listing"
	"listingbot/pkg/logx"
)

func openTestStore(t *testing.T, driver string) (Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	if driver == "sqlite" {
		path = filepath.Join(dir, "listingbot.db")
	}
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func sampleSet() *listing.Set {
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	return listing.SetOf(
		listing.Snapshot{ID: "sku-2", Name: "Booster Box", Price: "143.99", URL: "https://shop.example/sku-2", CapturedAt: at},
		listing.Snapshot{ID: "sku-1", Name: "Plush", Price: listing.NoPrice, Image: "https://shop.example/1.png", Description: "cute", CapturedAt: at},
	)
}

func TestCacheRoundTrip(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			st, _ := openTestStore(t, driver)
			ctx := context.Background()

			empty, err := st.LoadCache(ctx)
			if err != nil || empty.Len() != 0 {
				t.Fatalf("fresh LoadCache = %d items, err %v", empty.Len(), err)
			}

			in := sampleSet()
			if err := st.SaveCache(ctx, in); err != nil {
				t.Fatalf("SaveCache: %v", err)
			}
			out, err := st.LoadCache(ctx)
			if err != nil {
				t.Fatalf("LoadCache: %v", err)
			}
			if !in.Equal(out) {
				t.Fatalf("round trip mismatch: %+v vs %+v", in.Items(), out.Items())
			}
			if strings.Join(out.Keys(), ",") != "sku-2,sku-1" {
				t.Fatalf("order lost: %v", out.Keys())
			}

			// Replacing with an empty set clears everything.
			if err := st.SaveCache(ctx, listing.NewSet(0)); err != nil {
				t.Fatalf("SaveCache(empty): %v", err)
			}
			if out, _ := st.LoadCache(ctx); out.Len() != 0 {
				t.Fatalf("expected empty cache after reset, got %d", out.Len())
			}
		})
	}
}

func TestSettingsPersist(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			st, path := openTestStore(t, driver)
			ctx := context.Background()
			if _, ok, _ := st.GetSetting(ctx, SettingChannel); ok {
				t.Fatal("unexpected setting in fresh store")
			}
			if err := st.PutSetting(ctx, SettingChannel, "-100123:7"); err != nil {
				t.Fatalf("PutSetting: %v", err)
			}
			if err := st.PutSetting(ctx, SettingChannel, "-100456:0"); err != nil {
				t.Fatalf("PutSetting overwrite: %v", err)
			}
			_ = st.Close()

			st2, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer st2.Close()
			v, ok, err := st2.GetSetting(ctx, SettingChannel)
			if err != nil || !ok || v != "-100456:0" {
				t.Fatalf("GetSetting after reopen = %q %v %v", v, ok, err)
			}
		})
	}
}

func TestAuditAppend(t *testing.T) {
	for _, driver := range []string{"file", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			st, _ := openTestStore(t, driver)
			err := st.AppendAudit(context.Background(), AuditEntry{ActorID: 1, ChatID: 2, Action: "reset", OK: true})
			if err != nil {
				t.Fatalf("AppendAudit: %v", err)
			}
		})
	}
}

func TestFileLoadCorruptCacheYieldsEmptySet(t *testing.T) {
	for _, content := range []string{"{not json", "", `["a"]`, `{"1": {"timestamp": 12}}`} {
		st, path := openTestStore(t, "file")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		set, err := st.LoadCache(context.Background())
		if !errors.Is(err, ErrCacheCorrupt) {
			t.Fatalf("content %q: err = %v, want ErrCacheCorrupt", content, err)
		}
		if set == nil || set.Len() != 0 {
			t.Fatalf("content %q: expected empty non-nil set", content)
		}
	}
}

func TestFileCacheFormat(t *testing.T) {
	st, path := openTestStore(t, "file")
	if err := st.SaveCache(context.Background(), sampleSet()); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"{\n  \"sku-2\": {\n    \"name\": \"Booster Box\",",
		`"price": "N/A"`,
		`"timestamp": "2026-10-17T12:00:00Z"`,
	} {
		if !bytes.Contains(b, []byte(want)) {
			t.Fatalf("cache file missing %q:\n%s", want, b)
		}
	}
}

func TestFileSaveFailureLeavesPreviousCache(t *testing.T) {
	st, path := openTestStore(t, "file")
	ctx := context.Background()
	if err := st.SaveCache(ctx, sampleSet()); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	// Make the directory read-only so the temp file cannot be created.
	dir := filepath.Dir(path)
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o700)
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	err := st.SaveCache(ctx, listing.NewSet(0))
	if !errors.Is(err, ErrCacheWrite) {
		t.Fatalf("err = %v, want ErrCacheWrite", err)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(before, after) {
		t.Fatal("failed save modified the cache file")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
