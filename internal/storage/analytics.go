package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/models"
)

// AnalyticsStore persists per-asset display counters.
type AnalyticsStore interface {
	IncrementDisplay(ctx context.Context, rec models.AdRecord, at time.Time) error
	ListDisplays(ctx context.Context) ([]models.AdDisplayRecord, error)
	Ping(ctx context.Context) error
}

// Analytics is the opened analytics backend. Store is nil for the memory
// driver and when the configured store could not be opened; the recorder
// then keeps counts in memory.
type Analytics struct {
	Store  AnalyticsStore
	Driver string
	// Check reports store health for readiness; nil for the memory driver.
	Check func(ctx context.Context) error

	close func()
}

// OpenAnalytics opens the configured store. It never fails: an open error
// is logged and leaves a memory-only backend whose Check reports the error.
func OpenAnalytics(ctx context.Context, cfg config.DatabaseConfig) *Analytics {
	a := &Analytics{Driver: cfg.Driver, close: func() {}}

	var err error
	switch cfg.Driver {
	case config.DriverPostgres:
		var db *PostgresStore
		if db, err = NewPostgresStore(ctx, cfg); err == nil {
			a.Store, a.close = db, db.Close
		}
	case config.DriverSQLite:
		var db *SQLiteStore
		if db, err = NewSQLiteStore(ctx, cfg.Path); err == nil {
			a.Store = db
			a.close = func() {
				if err := db.Close(); err != nil {
					slog.Warn("close sqlite", "error", err)
				}
			}
		}
	default:
		slog.Warn("analytics kept in memory only")
		return a
	}

	if err != nil {
		slog.Warn("analytics store unavailable, keeping counts in memory", "driver", cfg.Driver, "error", err)
		down := fmt.Errorf("%s unavailable: %w", cfg.Driver, err)
		a.Check = func(context.Context) error { return down }
		return a
	}

	a.Check = a.Store.Ping
	return a
}

// Degraded reports whether a configured store failed to open.
func (a *Analytics) Degraded() bool {
	return a.Store == nil && a.Check != nil
}

func (a *Analytics) Close() {
	a.close()
}
