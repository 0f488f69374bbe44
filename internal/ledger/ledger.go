// Package ledger tracks successfully downloaded URLs so that repeat crawls
// skip work they have already done.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS downloads (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	url           TEXT UNIQUE NOT NULL,
	filename      TEXT NOT NULL,
	category      TEXT,
	file_hash     TEXT,
	downloaded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	status        TEXT DEFAULT 'success'
)`

// Ledger is a durable record of every successfully downloaded URL.
// Rows are insert-only; the UNIQUE constraint on url makes recording
// idempotent even under concurrent writers.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open creates (or opens) the ledger database at the given path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising ledger schema: %w", err)
	}

	return &Ledger{db: db, path: path}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Has reports whether the URL has already been downloaded.
func (l *Ledger) Has(ctx context.Context, url string) (bool, error) {
	var id int64
	err := l.db.QueryRowContext(ctx, "SELECT id FROM downloads WHERE url = ?", url).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying ledger: %w", err)
	}
	return true, nil
}

// Record inserts a download record. Recording a URL that already exists is
// a no-op: the first record for a URL wins and is never updated.
func (l *Ledger) Record(ctx context.Context, url, filename, category, fileHash string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO downloads (url, filename, category, file_hash) VALUES (?, ?, ?, ?)",
		url, filename, category, fileHash,
	)
	if err != nil {
		return fmt.Errorf("recording download: %w", err)
	}
	return nil
}

// Count returns the total number of recorded downloads.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM downloads").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting downloads: %w", err)
	}
	return n, nil
}

// StatsByCategory returns download counts grouped by category. The ledger
// fails softly here: an unreadable store yields an empty map, not an error,
// so that status displays keep working before the first crawl.
func (l *Ledger) StatsByCategory(ctx context.Context) map[string]int {
	stats := map[string]int{}

	rows, err := l.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM downloads GROUP BY category")
	if err != nil {
		slog.Debug("ledger stats unavailable", "error", err)
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var category sql.NullString
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			slog.Debug("ledger stats row scan failed", "error", err)
			return map[string]int{}
		}
		stats[category.String] = count
	}
	if err := rows.Err(); err != nil {
		slog.Debug("ledger stats iteration failed", "error", err)
		return map[string]int{}
	}
	return stats
}
