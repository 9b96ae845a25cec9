// ABOUTME: Embedded SQLite persistence for the page store using the pure-Go driver.
// ABOUTME: Keeps one row per page with the embedding as a float32 BLOB.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"github.com/2389-research/pagemem/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS pages (
    url       TEXT PRIMARY KEY,
    title     TEXT,
    summary   TEXT,
    timestamp INTEGER,
    embedding BLOB
);
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const metaLastUpdated = "last_updated"

// SQLiteCodec stores records in a SQLite database file. Save still rewrites
// every row so it shares the JSON codec's snapshot semantics.
type SQLiteCodec struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLiteCodec opens (creating if needed) the database at path and ensures the schema.
func OpenSQLiteCodec(path string, opts ...Option) (*SQLiteCodec, error) {
	o := newOptions(opts...)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}

	return &SQLiteCodec{db: db, path: path, logger: o.logger, now: o.now}, nil
}

// Load reads all pages. An empty database yields an empty snapshot.
func (c *SQLiteCodec) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewSnapshot()

	var lastUpdated string
	err := c.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastUpdated).Scan(&lastUpdated)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("read last updated: %w", err)
	}
	snap.LastUpdated = parseLastUpdated(lastUpdated)

	rows, err := c.db.QueryContext(ctx, `SELECT url, title, summary, timestamp, embedding FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	loadTime := c.now().Unix()
	for rows.Next() {
		var (
			url       string
			title     sql.NullString
			summary   sql.NullString
			timestamp sql.NullInt64
			blob      []byte
		)
		if err := rows.Scan(&url, &title, &summary, &timestamp, &blob); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}

		vec, err := DecodeEmbedding(blob)
		if err != nil || len(vec) == 0 {
			c.logger.Warn("dropping stored record with unusable embedding", "url", url, "error", err)
			continue
		}

		ts := loadTime
		if timestamp.Valid {
			ts = timestamp.Int64
		}
		snap.Records[url] = models.Record{
			Key:       url,
			Title:     title.String,
			Summary:   summary.String,
			Timestamp: ts,
			Embedding: vec,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}

	return snap, nil
}

// Save replaces every row with the snapshot contents in a single transaction.
func (c *SQLiteCodec) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pages`); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pages(url, title, summary, timestamp, embedding) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for key, rec := range snap.Records {
		if _, err := stmt.ExecContext(ctx, key, rec.Title, rec.Summary, rec.Timestamp, EncodeEmbedding(rec.Embedding)); err != nil {
			return fmt.Errorf("insert page %s: %w", key, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastUpdated, snap.LastUpdated.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write last updated: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *SQLiteCodec) Close() error {
	return c.db.Close()
}
