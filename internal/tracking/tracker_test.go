package tracking

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/models"
)

func obsAt(x, y int, g models.Gender, conf float64) models.Observation {
	return models.Observation{
		Box:        models.Box{X: x - 20, Y: y - 40, W: 40, H: 80},
		Gender:     g,
		Confidence: conf,
	}
}

func TestTracker_RegistersWhenEmpty(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	got := tr.Update([]models.Observation{
		obsAt(100, 100, models.GenderMale, 0.9),
		obsAt(500, 100, models.GenderUnknown, 0.8),
	})

	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].ID)
	assert.Equal(t, int64(1), got[1].ID)
	assert.Equal(t, models.GenderMale, got[0].Gender)
	assert.Equal(t, []models.Gender{models.GenderMale}, got[0].GenderHistory)
	assert.Equal(t, models.GenderUnknown, got[1].Gender)
	assert.Empty(t, got[1].GenderHistory)
	assert.Equal(t, 1, got[0].Hits)
	assert.Equal(t, models.Point{X: 100, Y: 100}, got[0].Centroid)
}

func TestTracker_MatchUpdatesTrack(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})

	got := tr.Update([]models.Observation{obsAt(120, 110, models.GenderUnknown, 0.6)})

	require.Len(t, got, 1)
	assert.Equal(t, int64(0), got[0].ID)
	assert.Equal(t, 2, got[0].Hits)
	assert.Equal(t, 0.9, got[0].Confidence, "confidence is a running max")
	assert.Equal(t, models.Point{X: 120, Y: 110}, got[0].Centroid)
	assert.Equal(t, models.GenderMale, got[0].Gender, "Unknown does not overwrite the label")
	assert.Len(t, got[0].GenderHistory, 1)
}

func TestTracker_TooFarRegistersNewTrack(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})

	got := tr.Update([]models.Observation{obsAt(400, 100, models.GenderFemale, 0.9)})

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].FramesSinceSeen)
	assert.Equal(t, int64(1), got[1].ID)
	assert.Equal(t, models.GenderFemale, got[1].Gender)
}

func TestTracker_DistanceAtLimitMatches(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})

	got := tr.Update([]models.Observation{obsAt(250, 100, models.GenderMale, 0.9)})

	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Hits)
}

func TestTracker_GreedyPrefersClosestPair(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Update([]models.Observation{
		obsAt(200, 200, models.GenderMale, 0.9),
		obsAt(300, 200, models.GenderFemale, 0.9),
	})

	// Both new observations are within range of both tracks. The closest
	// pair (track 1, x=295) is taken first, leaving x=210 for track 0.
	got := tr.Update([]models.Observation{
		obsAt(295, 200, models.GenderFemale, 0.9),
		obsAt(210, 200, models.GenderMale, 0.9),
	})

	require.Len(t, got, 2)
	assert.Equal(t, 210.0, got[0].Centroid.X)
	assert.Equal(t, 295.0, got[1].Centroid.X)
	assert.Equal(t, 2, got[0].Hits)
	assert.Equal(t, 2, got[1].Hits)
}

func TestTracker_DisappearanceRemovesTrack(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})

	for i := 0; i < 50; i++ {
		tr.Update(nil)
	}
	got := tr.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, 50, got[0].FramesSinceSeen)

	assert.Empty(t, tr.Update(nil))
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_IDsNeverReused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDisappeared = 0
	tr := NewTracker(cfg)

	tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})
	tr.Update(nil)
	require.Equal(t, 0, tr.Len())

	got := tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	tr.Reset()
	got = tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})
	assert.Equal(t, int64(2), got[0].ID)
}

func TestTracker_GenderVote(t *testing.T) {
	tests := []struct {
		name   string
		labels []models.Gender
		want   models.Gender
	}{
		{"majority male", []models.Gender{models.GenderMale, models.GenderMale, models.GenderFemale}, models.GenderMale},
		{"majority female", []models.Gender{models.GenderMale, models.GenderFemale, models.GenderFemale}, models.GenderFemale},
		{"tie goes to first seen", []models.Gender{models.GenderFemale, models.GenderMale}, models.GenderFemale},
		{"unknown ignored", []models.Gender{models.GenderFemale, models.GenderUnknown, models.GenderUnknown, models.GenderMale, models.GenderFemale}, models.GenderFemale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(DefaultConfig())
			var got []models.Track
			for _, g := range tt.labels {
				got = tr.Update([]models.Observation{obsAt(100, 100, g, 0.9)})
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Gender)
		})
	}
}

func TestTracker_HistoryDropsOldest(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.Update([]models.Observation{obsAt(100, 100, models.GenderFemale, 0.9)})
	for i := 0; i < 19; i++ {
		tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})
	}
	got := tr.Snapshot()
	require.Len(t, got[0].GenderHistory, 20)
	assert.Equal(t, models.GenderFemale, got[0].GenderHistory[0])

	got = tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})
	require.Len(t, got[0].GenderHistory, 20)
	assert.NotContains(t, got[0].GenderHistory, models.GenderFemale)
	assert.Equal(t, models.GenderMale, got[0].Gender)
}

func TestTracker_SnapshotIsCopy(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	got := tr.Update([]models.Observation{obsAt(100, 100, models.GenderMale, 0.9)})

	got[0].Hits = 99
	got[0].GenderHistory[0] = models.GenderFemale

	again := tr.Snapshot()
	assert.Equal(t, 1, again[0].Hits)
	assert.Equal(t, models.GenderMale, again[0].GenderHistory[0])
}

func TestTracker_RandomSequenceInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	tr := NewTracker(DefaultConfig())
	genders := []models.Gender{models.GenderMale, models.GenderFemale, models.GenderUnknown}

	var lastMax int64 = -1
	for frame := 0; frame < 500; frame++ {
		n := rng.IntN(6)
		obs := make([]models.Observation, n)
		for i := range obs {
			obs[i] = obsAt(rng.IntN(1280), rng.IntN(720), genders[rng.IntN(3)], rng.Float64())
		}

		got := tr.Update(obs)

		seen := make(map[int64]bool, len(got))
		for i, track := range got {
			assert.False(t, seen[track.ID], "duplicate id %d", track.ID)
			seen[track.ID] = true
			if i > 0 {
				assert.Less(t, got[i-1].ID, track.ID)
			}
			assert.LessOrEqual(t, track.FramesSinceSeen, 50)
			assert.LessOrEqual(t, len(track.GenderHistory), 20)
			assert.GreaterOrEqual(t, track.Hits, 1)
			if track.ID > lastMax {
				lastMax = track.ID
			}
		}
		require.Equal(t, len(got), tr.Len())
	}
	assert.Greater(t, lastMax, int64(0))
}
