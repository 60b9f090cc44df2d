package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/models"
)

func obs(x, y, w, h int, conf float64) models.Observation {
	return models.Observation{Box: models.Box{X: x, Y: y, W: w, H: h}, Gender: models.GenderUnknown, Confidence: conf}
}

func TestDeduplicate_HighOverlapKeepsMostConfident(t *testing.T) {
	a := obs(0, 0, 100, 100, 0.8)
	b := obs(0, 0, 100, 60, 0.9)
	require.InDelta(t, 0.6, a.Box.IoU(b.Box), 1e-9)

	got := Deduplicate([]models.Observation{a, b}, 0.75, 0.4)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0])
}

func TestDeduplicate_LowOverlapKeepsBoth(t *testing.T) {
	a := obs(0, 0, 100, 100, 0.9)
	b := obs(82, 0, 100, 100, 0.8)
	require.InDelta(t, 0.1, a.Box.IoU(b.Box), 0.01)

	got := Deduplicate([]models.Observation{b, a}, 0.75, 0.4)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0], "ordered by confidence")
	assert.Equal(t, b, got[1])
}

func TestDeduplicate_BaselineFilter(t *testing.T) {
	got := Deduplicate([]models.Observation{
		obs(0, 0, 10, 10, 0.74),
		obs(300, 300, 10, 10, 0.75),
	}, 0.75, 0.4)
	require.Len(t, got, 1)
	assert.Equal(t, 0.75, got[0].Confidence)
}

func TestDeduplicate_ChainedGroups(t *testing.T) {
	// b overlaps a and c, a and c do not overlap; b is the strongest so both go.
	a := obs(0, 0, 100, 100, 0.8)
	b := obs(30, 0, 100, 100, 0.95)
	c := obs(60, 0, 100, 100, 0.85)

	got := Deduplicate([]models.Observation{a, b, c}, 0.5, 0.4)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0])
}

func TestDeduplicate_Deterministic(t *testing.T) {
	in := []models.Observation{
		obs(0, 0, 50, 50, 0.9),
		obs(500, 0, 50, 50, 0.9),
		obs(5, 5, 50, 50, 0.8),
	}
	first := Deduplicate(in, 0.75, 0.4)
	second := Deduplicate(in, 0.75, 0.4)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
	assert.Equal(t, 0, first[0].Box.X)
	assert.Equal(t, 500, first[1].Box.X)
}

func TestDeduplicate_Empty(t *testing.T) {
	assert.Empty(t, Deduplicate(nil, 0.75, 0.4))
}
