package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"hcd/util"
)

// SQLite persists listener records in a sqlite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and
// migrates its schema.  A leading "~/" is expanded to the home dir.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	path = util.ExpandHome(strings.TrimPrefix(path, "sqlite://"))
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("database dir: %w", err)
	}
	// Listener configs carry secrets; the file is owner-only.
	if err := ensurePrivate(path); err != nil {
		return nil, err
	}

	dbh, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; sqlite serializes anyway.
	dbh.SetMaxOpenConns(1)

	if _, err := dbh.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	if _, err := dbh.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	if err := migrate(ctx, dbh); err != nil {
		_ = dbh.Close()
		return nil, err
	}
	return &SQLite{db: dbh}, nil
}

func ensurePrivate(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("database file: %w", err)
	}
	f.Close()
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("database file: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS listeners (
  name       TEXT PRIMARY KEY,
  protocol   TEXT NOT NULL,
  state      TEXT NOT NULL,
  config     TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Save inserts rec or updates the existing row with the same name.
// The original creation time is kept on update.
func (s *SQLite) Save(ctx context.Context, rec Record) error {
	cfg, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("encode config of %q: %w", rec.Name, err)
	}
	now := time.Now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO listeners (name, protocol, state, config, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  protocol   = excluded.protocol,
  state      = excluded.state,
  config     = excluded.config,
  updated_at = excluded.updated_at`,
		rec.Name, rec.Protocol, rec.State, string(cfg), created.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("save listener %q: %w", rec.Name, err)
	}
	return nil
}

// Delete removes the named record.
func (s *SQLite) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listeners WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete listener %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Load returns every record ordered by creation time, then name.
func (s *SQLite) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, protocol, state, config, created_at, updated_at
FROM listeners ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("load listeners: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec              Record
			cfg              string
			created, updated int64
		)
		if err := rows.Scan(&rec.Name, &rec.Protocol, &rec.State, &cfg, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan listener: %w", err)
		}
		if err := json.Unmarshal([]byte(cfg), &rec.Config); err != nil {
			return nil, fmt.Errorf("decode config of %q: %w", rec.Name, err)
		}
		rec.CreatedAt = time.Unix(0, created)
		rec.UpdatedAt = time.Unix(0, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }
