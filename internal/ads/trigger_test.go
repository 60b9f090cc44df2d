package ads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/crowdsense/internal/models"
)

type fakeClock struct{ t time.Time }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func adFor(aud models.Audience) models.AdRecord {
	return models.AdRecord{
		AdAsset:  models.AdAsset{ID: "X_" + string(aud), DisplayName: "x"},
		Audience: aud,
	}
}

var somebody = models.CrowdCount{Total: 1, Male: 1}

func TestTrigger_NobodyInView(t *testing.T) {
	tr := NewTrigger(DefaultTriggerConfig(), newClock().Now)
	assert.Equal(t, Decision{}, tr.Decide(models.AudienceNeutral, models.CrowdCount{}))
}

func TestTrigger_DisplayTimeline(t *testing.T) {
	clock := newClock()
	tr := NewTrigger(DefaultTriggerConfig(), clock.Now)

	d := tr.Decide(models.AudienceMale, somebody)
	require.True(t, d.Show)
	assert.Equal(t, models.AudienceMale, d.Target)
	tr.Commit(adFor(models.AudienceMale))

	clock.Advance(5 * time.Second)

	d = tr.Decide(models.AudienceMale, somebody)
	assert.False(t, d.Show)
	require.NotNil(t, d.Current)
	assert.Equal(t, models.AudienceMale, d.Current.Audience)

	d = tr.Decide(models.AudienceFemale, models.CrowdCount{Total: 2, Female: 2})
	assert.True(t, d.Show)
	assert.Equal(t, models.AudienceFemale, d.Target)
}

func TestTrigger_CooldownAfterClear(t *testing.T) {
	clock := newClock()
	tr := NewTrigger(DefaultTriggerConfig(), clock.Now)
	female := models.CrowdCount{Total: 1, Female: 1}

	tr.Commit(adFor(models.AudienceFemale))
	tr.Clear()

	clock.Advance(time.Second)
	assert.False(t, tr.Decide(models.AudienceFemale, female).Show)

	clock.Advance(2 * time.Second)
	d := tr.Decide(models.AudienceFemale, female)
	assert.True(t, d.Show)
	assert.Equal(t, models.AudienceFemale, d.Target)
}

func TestTrigger_ExpiredDisplayFallsToCooldownRule(t *testing.T) {
	clock := newClock()
	tr := NewTrigger(DefaultTriggerConfig(), clock.Now)

	tr.Commit(adFor(models.AudienceMale))
	clock.Advance(16 * time.Second)

	d := tr.Decide(models.AudienceMale, somebody)
	assert.True(t, d.Show, "same majority re-triggers after the display ends")
}

func TestTrigger_CurrentExpiresLazily(t *testing.T) {
	clock := newClock()
	tr := NewTrigger(DefaultTriggerConfig(), clock.Now)
	assert.Nil(t, tr.Current())

	started := tr.Commit(adFor(models.AudienceMale))
	assert.Equal(t, clock.Now(), started)

	clock.Advance(14 * time.Second)
	require.NotNil(t, tr.Current())

	clock.Advance(time.Second)
	assert.Nil(t, tr.Current())
	assert.Nil(t, tr.Current())
}

func TestTrigger_CurrentIsCopy(t *testing.T) {
	tr := NewTrigger(DefaultTriggerConfig(), newClock().Now)
	tr.Commit(adFor(models.AudienceMale))

	cur := tr.Current()
	cur.ID = "mutated"

	assert.Equal(t, "X_male", tr.Current().ID)
}
