package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/stormydragon/twitfix/internal/domain"
)

// SQLiteCache stores one row per record in an embedded database. The
// engagement counters are mirrored into indexed columns so TopByField can
// sort natively; the autoincrement id preserves insertion order for the
// tie-break.
type SQLiteCache struct {
	db     *sql.DB
	logger *slog.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS links (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	link   TEXT NOT NULL UNIQUE,
	hits   INTEGER NOT NULL DEFAULT 0,
	likes  INTEGER NOT NULL DEFAULT 0,
	rts    INTEGER NOT NULL DEFAULT 0,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_links_hits ON links(hits);
CREATE INDEX IF NOT EXISTS idx_links_likes ON links(likes);
CREATE INDEX IF NOT EXISTS idx_links_rts ON links(rts);
`

// NewSQLiteCache opens (creating if necessary) the database at path.
func NewSQLiteCache(path string, logger *slog.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteCache{db: db, logger: logger}, nil
}

func (c *SQLiteCache) Get(ctx context.Context, sourceURL string) (*domain.PostRecord, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT record FROM links WHERE link = ?`, sourceURL).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}

	var rec domain.PostRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("corrupt cache row for %s: %w", sourceURL, err)
	}

	rec.HitCount++
	updated, err := json.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE links SET hits = ?, record = ? WHERE link = ?`,
		rec.HitCount, string(updated), sourceURL,
	); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}

	return &rec, nil
}

func (c *SQLiteCache) Put(ctx context.Context, sourceURL string, rec *domain.PostRecord) (bool, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO links (link, hits, likes, rts, record)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(link) DO UPDATE SET
			hits = excluded.hits,
			likes = excluded.likes,
			rts = excluded.rts,
			record = excluded.record`,
		sourceURL, rec.HitCount, rec.LikeCount, rec.RetweetCount, string(raw),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return true, nil
}

func (c *SQLiteCache) TopByField(ctx context.Context, field string, count, offset int) ([]*domain.PostRecord, error) {
	if err := validSortField(field); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	// field is validated against a fixed set; never caller-interpolated.
	query := fmt.Sprintf(
		`SELECT record FROM links ORDER BY %s DESC, id ASC LIMIT ? OFFSET ?`, field)

	rows, err := c.db.QueryContext(ctx, query, count, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	var out []*domain.PostRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var rec domain.PostRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("corrupt cache row: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (c *SQLiteCache) Latest(ctx context.Context, count, offset int) ([]*domain.PostRecord, error) {
	if count <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT record FROM links ORDER BY id DESC LIMIT ? OFFSET ?`, count, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	var out []*domain.PostRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var rec domain.PostRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("corrupt cache row: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (c *SQLiteCache) Close(ctx context.Context) error {
	return c.db.Close()
}
