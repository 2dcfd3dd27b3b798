// Package sqlite provides a SQLite-backed cache storage.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bool64/ctxd"
	"github.com/bool64/stats"
	"github.com/bool64/swcache"
	_ "modernc.org/sqlite" // Registers "sqlite" driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS stores (
	seq  INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS entries (
	store       TEXT NOT NULL,
	key         TEXT NOT NULL,
	status      INTEGER NOT NULL,
	status_text TEXT NOT NULL,
	header      TEXT NOT NULL,
	body        BLOB NOT NULL,
	stored_at   INTEGER NOT NULL,
	PRIMARY KEY (store, key)
);
`

// Config is optional configuration of storage.
type Config struct {
	// Logger is an instance of contextualized logger, can be nil.
	Logger ctxd.Logger

	// Stats is metrics collector, can be nil.
	Stats stats.Tracker
}

var _ swcache.Storage = &Storage{}

// Storage persists cache stores in SQLite.
type Storage struct {
	sqlDB  *sql.DB
	closed int32
	log    ctxd.Logger
	stat   stats.Tracker
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens SQLite storage and creates schema if missing.
func Open(path string, cfg ...Config) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	config := Config{}
	if len(cfg) >= 1 {
		config = cfg[0]
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Storage{sqlDB: sqlDB, log: config.Logger, stat: config.Stats}

	if s.log == nil {
		s.log = ctxd.NoOpLogger{}
	}

	if s.stat == nil {
		s.stat = stats.NoOp{}
	}

	return s, nil
}

// Close closes the SQLite handle, further operations fail with swcache.ErrClosed.
func (s *Storage) Close() error {
	if s == nil || s.sqlDB == nil || !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}

	return s.sqlDB.Close()
}

func (s *Storage) check(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return swcache.ErrClosed
	}

	return ctx.Err()
}

// Open returns a store, creating it if absent.
func (s *Storage) Open(ctx context.Context, name string) (swcache.Store, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `INSERT OR IGNORE INTO stores (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("create store %s: %w", name, err)
	}

	return &Store{s: s, name: name}, nil
}

// Has checks store existence.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	var n int

	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM stores WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check store %s: %w", name, err)
	}

	return n > 0, nil
}

// Delete removes store with its entries.
func (s *Storage) Delete(ctx context.Context, name string) (deleted bool, err error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM stores WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete store %s: %w", name, err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM entries WHERE store = ?`, name); err != nil {
		return false, fmt.Errorf("delete entries of %s: %w", name, err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	s.log.Debug(ctx, "deleted cache store", "name", name, "existed", affected > 0)

	return affected > 0, nil
}

// Keys returns store names in creation order.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT name FROM stores ORDER BY seq`)
}

func (s *Storage) strings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var res []string

	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		res = append(res, v)
	}

	return res, rows.Err()
}

var _ swcache.Store = &Store{}

// Store is a named cache store in SQLite storage.
type Store struct {
	s    *Storage
	name string
}

// Match returns cached response.
func (c *Store) Match(ctx context.Context, key string) (*swcache.Response, error) {
	if swcache.SkipRead(ctx) {
		return nil, swcache.ErrNotFound
	}

	if err := c.s.check(ctx); err != nil {
		return nil, err
	}

	var (
		resp     = swcache.Response{}
		header   string
		storedAt int64
	)

	err := c.s.sqlDB.QueryRowContext(ctx,
		`SELECT status, status_text, header, body, stored_at FROM entries WHERE store = ? AND key = ?`,
		c.name, key,
	).Scan(&resp.Status, &resp.StatusText, &header, &resp.Body, &storedAt)

	if errors.Is(err, sql.ErrNoRows) {
		c.s.log.Debug(ctx, "cache miss", "name", c.name, "key", key)
		c.s.stat.Add(ctx, swcache.MetricMiss, 1, "name", c.name)

		return nil, swcache.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	resp.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &resp.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	if resp.Body == nil {
		resp.Body = []byte{}
	}

	resp.StoredAt = fromMillis(storedAt)

	c.s.stat.Add(ctx, swcache.MetricHit, 1, "name", c.name)

	return &resp, nil
}

// Put stores response, swcache.ErrNotFound is returned if store was deleted.
func (c *Store) Put(ctx context.Context, key string, resp *swcache.Response) error {
	if err := c.s.check(ctx); err != nil {
		return err
	}

	header, err := json.Marshal(resp.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	body := resp.Body
	if body == nil {
		body = []byte{}
	}

	res, err := c.s.sqlDB.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (store, key, status, status_text, header, body, stored_at)
		 SELECT ?, ?, ?, ?, ?, ?, ? WHERE EXISTS (SELECT 1 FROM stores WHERE name = ?)`,
		c.name, key, resp.Status, resp.StatusText, string(header), body, toMillis(time.Now()), c.name,
	)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: store %s", swcache.ErrNotFound, c.name)
	}

	c.s.log.Debug(ctx, "wrote to cache", "name", c.name, "key", key, "status", resp.Status, "bytes", len(body))
	c.s.stat.Add(ctx, swcache.MetricWrite, 1, "name", c.name)

	return nil
}

// Delete removes cached response.
func (c *Store) Delete(ctx context.Context, key string) error {
	if err := c.s.check(ctx); err != nil {
		return err
	}

	res, err := c.s.sqlDB.ExecContext(ctx, `DELETE FROM entries WHERE store = ? AND key = ?`, c.name, key)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return swcache.ErrNotFound
	}

	c.s.stat.Add(ctx, swcache.MetricDelete, 1, "name", c.name)

	return nil
}

// Keys lists cached request keys in order of storing.
func (c *Store) Keys(ctx context.Context) ([]string, error) {
	return c.s.strings(ctx, `SELECT key FROM entries WHERE store = ? ORDER BY stored_at, rowid`, c.name)
}
