package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ad_analytics (
	ad_id          TEXT PRIMARY KEY,
	ad_name        TEXT NOT NULL DEFAULT '',
	ad_path        TEXT NOT NULL DEFAULT '',
	ad_type        TEXT NOT NULL DEFAULT 'image',
	gender         TEXT NOT NULL DEFAULT 'neutral',
	display_count  INTEGER NOT NULL DEFAULT 0,
	last_displayed TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
)`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// IncrementDisplay creates the asset row at count 1 or bumps its count.
func (s *PostgresStore) IncrementDisplay(ctx context.Context, rec models.AdRecord, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ad_analytics (ad_id, ad_name, ad_path, ad_type, gender, display_count, last_displayed, created_at)
		 VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
		 ON CONFLICT (ad_id) DO UPDATE SET
			display_count  = ad_analytics.display_count + 1,
			ad_name        = EXCLUDED.ad_name,
			ad_path        = EXCLUDED.ad_path,
			ad_type        = EXCLUDED.ad_type,
			gender         = EXCLUDED.gender,
			last_displayed = EXCLUDED.last_displayed`,
		rec.ID, rec.DisplayName, rec.MediaPath, string(rec.MediaType), string(rec.Audience), at,
	)
	if err != nil {
		return fmt.Errorf("increment display %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) ListDisplays(ctx context.Context) ([]models.AdDisplayRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ad_id, ad_name, ad_path, ad_type, gender, display_count, last_displayed, created_at
		 FROM ad_analytics ORDER BY display_count DESC, ad_id`)
	if err != nil {
		return nil, fmt.Errorf("list displays: %w", err)
	}
	defer rows.Close()

	var out []models.AdDisplayRecord
	for rows.Next() {
		var (
			r             models.AdDisplayRecord
			typ, audience string
		)
		if err := rows.Scan(&r.AdID, &r.Name, &r.Path, &typ, &audience, &r.DisplayCount, &r.LastDisplayed, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan display: %w", err)
		}
		r.Type = models.MediaType(typ)
		r.Audience = models.ParseAudience(audience)
		out = append(out, r)
	}
	return out, rows.Err()
}
