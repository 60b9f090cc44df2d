package ads

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/models"
)

func TestDemoCatalogSizes(t *testing.T) {
	assert.Len(t, DemoAssets(models.AudienceMale), 4)
	assert.Len(t, DemoAssets(models.AudienceFemale), 5)
	assert.Len(t, DemoAssets(models.AudienceNeutral), 2)
}

func TestLoadLocalInventory_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ads")

	inv, err := LoadLocalInventory(dir)
	require.NoError(t, err)
	assert.Empty(t, inv[models.AudienceMale])

	for _, aud := range models.Audiences {
		info, err := os.Stat(filepath.Join(dir, string(aud)))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestLoadLocalInventory_Files(t *testing.T) {
	dir := t.TempDir()
	for _, aud := range models.Audiences {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, string(aud)), 0o755))
	}
	write := func(rel string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte("x"), 0o644))
	}
	write("male/summer_shoes.mp4")
	write("male/watch promo.JPG")
	write("male/README.md")
	write("male/.hidden.png")
	write("female/bags.webm")

	inv, err := LoadLocalInventory(dir)
	require.NoError(t, err)

	male := inv[models.AudienceMale]
	require.Len(t, male, 2)
	assert.Equal(t, models.AdAsset{
		ID:          "MALE_SUMMER_SHOES_MP4",
		MediaPath:   "/static/ads/male/summer_shoes.mp4",
		MediaType:   models.MediaVideo,
		DisplayName: "Summer Shoes",
	}, male[0])
	assert.Equal(t, "MALE_WATCH_PROMO_JPG", male[1].ID)
	assert.Equal(t, models.MediaImage, male[1].MediaType)
	assert.Equal(t, "Watch Promo", male[1].DisplayName)

	require.Len(t, inv[models.AudienceFemale], 1)
	assert.Empty(t, inv[models.AudienceNeutral])
}

type fakeLister struct {
	keys map[string][]string
	err  error
}

func (f *fakeLister) ListKeys(_ context.Context, prefix string) ([]string, error) {
	return f.keys[prefix], f.err
}

func TestLoadObjectInventory(t *testing.T) {
	lister := &fakeLister{keys: map[string][]string{
		"ads/female/": {"ads/female/spring.png", "ads/female/notes.txt"},
	}}

	inv, err := LoadObjectInventory(context.Background(), lister, "ads/")
	require.NoError(t, err)
	require.Len(t, inv[models.AudienceFemale], 1)
	assert.Equal(t, "/media/ads/female/spring.png", inv[models.AudienceFemale][0].MediaPath)
	assert.Equal(t, "FEMALE_SPRING_PNG", inv[models.AudienceFemale][0].ID)

	_, err = LoadObjectInventory(context.Background(), &fakeLister{err: errors.New("down")}, "ads/")
	assert.Error(t, err)
}

func TestCatalog_FallsBackToDemo(t *testing.T) {
	local := Inventory{models.AudienceMale: {{ID: "MALE_A", DisplayName: "A"}}}
	c := NewCatalog(local)

	assert.Equal(t, 1, c.Size(models.AudienceMale))
	assert.Equal(t, 5, c.Size(models.AudienceFemale))
	assert.Equal(t, 2, c.Size(models.AudienceNeutral))
}

func TestCatalog_DedupesAcrossSources(t *testing.T) {
	a := Inventory{models.AudienceMale: {{ID: "MALE_A", DisplayName: "local"}}}
	b := Inventory{models.AudienceMale: {{ID: "MALE_A", DisplayName: "object"}, {ID: "MALE_B"}}}

	c := NewCatalog(a, b)

	got := c.Assets(models.AudienceMale)
	require.Len(t, got, 2)
	assert.Equal(t, "local", got[0].DisplayName)
}

func TestCatalog_PickFallbackChain(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	var empty Catalog
	got := empty.pick(models.AudienceFemale, rng)
	assert.Contains(t, []string{"NEUTRAL_001", "NEUTRAL_002"}, got.ID)

	onlyNeutral := &Catalog{buckets: Inventory{models.AudienceNeutral: {{ID: "N"}}}}
	assert.Equal(t, "N", onlyNeutral.pick(models.AudienceMale, rng).ID)
}
