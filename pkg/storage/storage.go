package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MaxHistory is the number of history items kept. Older items are evicted
// first.
const MaxHistory = 100

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS history (
  seq        INTEGER PRIMARY KEY AUTOINCREMENT,
  id         TEXT NOT NULL UNIQUE,
  title      TEXT NOT NULL,
  image_url  TEXT,
  created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS preferences (
  key        TEXT PRIMARY KEY,
  value      BLOB NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// AddHistory stores item and prunes the history to MaxHistory entries in the
// same transaction. A zero ID or CreatedAt is filled in.
func (d *DB) AddHistory(ctx context.Context, item HistoryItem) (HistoryItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(item.Title) == "" {
		return item, errors.New("history item needs a title")
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return item, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO history(id, title, image_url, created_at) VALUES(?,?,?,?)`,
		item.ID.String(), item.Title, nullIfEmpty(item.ImageURL), item.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return item, fmt.Errorf("insert history item: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM history WHERE seq NOT IN (SELECT seq FROM history ORDER BY seq DESC LIMIT ?)`, MaxHistory)
	if err != nil {
		return item, fmt.Errorf("prune history: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return item, err
	}
	return item, nil
}

// ListHistory returns up to limit items, newest first. limit <= 0 returns
// everything.
func (d *DB) ListHistory(ctx context.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = MaxHistory
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT id, title, image_url, created_at FROM history ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []HistoryItem{}
	for rows.Next() {
		var (
			it         HistoryItem
			idStr      string
			imageNS    sql.NullString
			createdStr string
		)
		if err := rows.Scan(&idStr, &it.Title, &imageNS, &createdStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("history item %q: %w", idStr, err)
		}
		it.ID = id
		it.ImageURL = imageNS.String
		it.CreatedAt = parseTime(createdStr)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// RemoveHistory deletes the given items and reports how many existed.
func (d *DB) RemoveHistory(ctx context.Context, ids ...uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id.String()
	}
	res, err := d.sql.ExecContext(ctx, "DELETE FROM history WHERE id IN ("+strings.Join(placeholders, ",")+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearHistory deletes every history item.
func (d *DB) ClearHistory(ctx context.Context) (int64, error) {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM history")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *DB) HistoryCount(ctx context.Context) (int, error) {
	var n int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func parseTime(s string) time.Time {
	// Try RFC3339 first, then SQLite CURRENT_TIMESTAMP format
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
