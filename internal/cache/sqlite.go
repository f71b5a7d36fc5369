package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache (
    key TEXT PRIMARY KEY,
    value TEXT,
    datetime TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cache_key ON cache(key);
`

// SQLite is a Cache persisted in a SQLite database, so rendered pages
// survive restarts.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (creating if needed) a cache database at path.
// ":memory:" is accepted for tests.
func OpenSQLite(path string) (*SQLite, error) {
	connStr := path
	if path != ":memory:" {
		connStr = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLite{conn: conn}, nil
}

func (s *SQLite) Get(key string) (string, bool) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM cache WHERE key = ?", key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return "", false
		}
		return "", false
	}
	return value, true
}

func (s *SQLite) Set(key, value string) error {
	_, err := s.conn.Exec(
		"INSERT OR REPLACE INTO cache (key, value, datetime) VALUES (?, ?, ?)",
		key, value, time.Now())
	return err
}

func (s *SQLite) Delete(key string) error {
	_, err := s.conn.Exec("DELETE FROM cache WHERE key = ?", key)
	return err
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

var _ Cache = (*SQLite)(nil)
