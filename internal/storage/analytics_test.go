package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/ads"
	"github.com/your-org/crowdsense/internal/config"
	"github.com/your-org/crowdsense/internal/models"
)

func TestOpenAnalytics_SQLite(t *testing.T) {
	ctx := context.Background()
	a := OpenAnalytics(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "analytics.db"),
	})
	t.Cleanup(a.Close)

	require.NotNil(t, a.Store)
	assert.False(t, a.Degraded())
	require.NotNil(t, a.Check)
	assert.NoError(t, a.Check(ctx))
}

func TestOpenAnalytics_Memory(t *testing.T) {
	a := OpenAnalytics(context.Background(), config.DatabaseConfig{Driver: config.DriverMemory})
	t.Cleanup(a.Close)

	assert.Nil(t, a.Store)
	assert.Nil(t, a.Check)
	assert.False(t, a.Degraded())
}

func TestOpenAnalytics_UnwritablePathFallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	a := OpenAnalytics(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(blocker, "db", "analytics.db"),
	})
	t.Cleanup(a.Close)

	assert.Nil(t, a.Store)
	assert.True(t, a.Degraded())
	require.NotNil(t, a.Check)
	err := a.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite unavailable")

	var store ads.Store
	if a.Store != nil {
		store = a.Store
	}
	rec := ads.NewRecorder(store, nil)
	ad := models.AdRecord{AdAsset: models.AdAsset{ID: "MALE_001"}, Audience: models.AudienceMale}
	rec.Record(ctx, ad)
	rec.Record(ctx, ad)

	records := rec.Records(ctx)
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].DisplayCount)
}
