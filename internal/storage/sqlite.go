package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/your-org/crowdsense/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ad_analytics (
	ad_id          TEXT PRIMARY KEY,
	ad_name        TEXT NOT NULL DEFAULT '',
	ad_path        TEXT NOT NULL DEFAULT '',
	ad_type        TEXT NOT NULL DEFAULT 'image',
	gender         TEXT NOT NULL DEFAULT 'neutral',
	display_count  INTEGER NOT NULL DEFAULT 0,
	last_displayed INTEGER NOT NULL,
	created_at     INTEGER NOT NULL
)`

// SQLiteStore keeps analytics in a local file. Timestamps are stored as unix
// milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) IncrementDisplay(ctx context.Context, rec models.AdRecord, at time.Time) error {
	ms := at.UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ad_analytics (ad_id, ad_name, ad_path, ad_type, gender, display_count, last_displayed, created_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT (ad_id) DO UPDATE SET
			display_count  = display_count + 1,
			ad_name        = excluded.ad_name,
			ad_path        = excluded.ad_path,
			ad_type        = excluded.ad_type,
			gender         = excluded.gender,
			last_displayed = excluded.last_displayed`,
		rec.ID, rec.DisplayName, rec.MediaPath, string(rec.MediaType), string(rec.Audience), ms, ms,
	)
	if err != nil {
		return fmt.Errorf("increment display %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListDisplays(ctx context.Context) ([]models.AdDisplayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ad_id, ad_name, ad_path, ad_type, gender, display_count, last_displayed, created_at
		 FROM ad_analytics ORDER BY display_count DESC, ad_id`)
	if err != nil {
		return nil, fmt.Errorf("list displays: %w", err)
	}
	defer rows.Close()

	var out []models.AdDisplayRecord
	for rows.Next() {
		var (
			r               models.AdDisplayRecord
			typ, audience   string
			last, createdAt int64
		)
		if err := rows.Scan(&r.AdID, &r.Name, &r.Path, &typ, &audience, &r.DisplayCount, &last, &createdAt); err != nil {
			return nil, fmt.Errorf("scan display: %w", err)
		}
		r.Type = models.MediaType(typ)
		r.Audience = models.ParseAudience(audience)
		r.LastDisplayed = time.UnixMilli(last).UTC()
		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
