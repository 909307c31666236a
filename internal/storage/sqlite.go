package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"listingbot/internal/listing"
	"listingbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) LoadCache(ctx context.Context) (*listing.Set, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, url, image, description, captured_at FROM snapshots ORDER BY pos`)
	if err != nil {
		return listing.NewSet(0), fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	set := listing.NewSet(0)
	for rows.Next() {
		var (
			it listing.Snapshot
			at string
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &it.URL, &it.Image, &it.Description, &at); err != nil {
			return listing.NewSet(0), fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
		}
		if it.CapturedAt, err = listing.ParseTimestamp(at); err != nil {
			return listing.NewSet(0), fmt.Errorf("%w: product %q: %v", ErrCacheCorrupt, it.ID, err)
		}
		set.Put(it)
	}
	if err := rows.Err(); err != nil {
		return listing.NewSet(0), fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return set, nil
}

func (s *sqliteStore) SaveCache(ctx context.Context, set *listing.Set) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("%w: %v", ErrCacheWrite, err)
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshots(id, pos, name, price, url, image, description, captured_at) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, it := range set.Items() {
		at := ""
		if !it.CapturedAt.IsZero() {
			at = it.CapturedAt.Format(time.RFC3339Nano)
		}
		if _, err = stmt.ExecContext(ctx, it.ID, i, it.Name, it.Price, it.URL, it.Image, it.Description, at); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *sqliteStore) PutSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("setting key is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return err
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, actor_username, chat_id, thread_id, action, target, ok, err)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.ActorID, nullStr(e.ActorUsername), e.ChatID, e.ThreadID,
		e.Action, nullStr(e.Target), e.OK, nullStr(e.Error),
	)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
