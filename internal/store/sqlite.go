// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS caches (
	name       TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
	cache     TEXT NOT NULL,
	key       TEXT NOT NULL,
	url       TEXT NOT NULL,
	status    INTEGER NOT NULL,
	header    TEXT NOT NULL,
	body      BLOB,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (cache, key)
);
`

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// SQLiteStorage keeps all caches in a single SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (Cache, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO caches (name, created_at) VALUES (?, ?)`,
		name, toMillis(time.Now())); err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", name, err)
	}
	return &SQLiteCache{name: name, db: s.db}, nil
}

func (s *SQLiteStorage) Has(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM caches WHERE name = ?`, name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up cache %s: %w", name, err)
	}
	return true, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE cache = ?`, name); err != nil {
		return false, fmt.Errorf("failed to delete entries of %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list caches: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SQLiteCache is a single cache within the database.
type SQLiteCache struct {
	name string
	db   *sql.DB
}

func (c *SQLiteCache) Name() string { return c.name }

func (c *SQLiteCache) Match(ctx context.Context, req *http.Request) (*Response, bool, error) {
	if !matchable(req) {
		return nil, false, nil
	}

	var (
		resp     Response
		header   string
		storedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT url, status, header, body, stored_at FROM entries WHERE cache = ? AND key = ?`,
		c.name, Key(req)).Scan(&resp.URL, &resp.Status, &header, &resp.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read from cache: %w", err)
	}
	if header != "" {
		if err := json.Unmarshal([]byte(header), &resp.Header); err != nil {
			return nil, false, fmt.Errorf("failed to decode cached headers: %w", err)
		}
	}
	resp.StoredAt = fromMillis(storedAt)
	return &resp, true, nil
}

func (c *SQLiteCache) Put(ctx context.Context, req *http.Request, resp *Response) error {
	return c.PutAll(ctx, []Entry{{Request: req, Response: resp}})
}

// PutAll writes every entry in one transaction.
func (c *SQLiteCache) PutAll(ctx context.Context, entries []Entry) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// A cache deleted from storage is recreated on write, like a disk
	// directory would be.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO caches (name, created_at) VALUES (?, ?)`,
		c.name, toMillis(time.Now())); err != nil {
		return fmt.Errorf("failed to open cache %s: %w", c.name, err)
	}

	for _, e := range entries {
		resp := stamp(e.Response)
		header, err := json.Marshal(resp.Header)
		if err != nil {
			return fmt.Errorf("failed to encode headers: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO entries (cache, key, url, status, header, body, stored_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.name, Key(e.Request), resp.URL, resp.Status, string(header), resp.Body,
			toMillis(resp.StoredAt)); err != nil {
			return fmt.Errorf("failed to write to cache: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	log.Debugf("stored %d entries in %s", len(entries), c.name)
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, req *http.Request) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM entries WHERE cache = ? AND key = ?`, c.name, Key(req))
	if err != nil {
		return false, fmt.Errorf("failed to remove cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *SQLiteCache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT key FROM entries WHERE cache = ? ORDER BY key`, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
