package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/models"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "db", "analytics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_IncrementDisplay(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)

	ad := models.AdRecord{
		AdAsset: models.AdAsset{
			ID:          "MALE_001",
			MediaPath:   "/static/ads/male/shoes.mp4",
			MediaType:   models.MediaVideo,
			DisplayName: "Shoes",
		},
		Audience: models.AudienceMale,
	}
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.IncrementDisplay(ctx, ad, first))
	require.NoError(t, s.IncrementDisplay(ctx, ad, first.Add(time.Minute)))
	require.NoError(t, s.IncrementDisplay(ctx, ad, first.Add(2*time.Minute)))

	recs, err := s.ListDisplays(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "MALE_001", r.AdID)
	assert.Equal(t, "Shoes", r.Name)
	assert.Equal(t, models.MediaVideo, r.Type)
	assert.Equal(t, models.AudienceMale, r.Audience)
	assert.Equal(t, 3, r.DisplayCount)
	assert.Equal(t, first, r.CreatedAt)
	assert.Equal(t, first.Add(2*time.Minute), r.LastDisplayed)
}

func TestSQLiteStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	s := newSQLite(t)
	now := time.Now()

	bump := func(id string, aud models.Audience, n int) {
		for i := 0; i < n; i++ {
			rec := models.AdRecord{AdAsset: models.AdAsset{ID: id}, Audience: aud}
			require.NoError(t, s.IncrementDisplay(ctx, rec, now))
		}
	}
	bump("FEMALE_001", models.AudienceFemale, 1)
	bump("MALE_001", models.AudienceMale, 4)
	bump("NEUTRAL_001", models.AudienceNeutral, 2)

	recs, err := s.ListDisplays(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"MALE_001", "NEUTRAL_001", "FEMALE_001"},
		[]string{recs[0].AdID, recs[1].AdID, recs[2].AdID})
	assert.NoError(t, s.Ping(ctx))
}
