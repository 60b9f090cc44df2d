package ads

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/observability"
	"github.com/your-org/crowdsense/internal/ringbuf"
)

const (
	DefaultHistorySize  = 100
	DefaultHistoryLimit = 20
)

// Stats summarises what has been shown since start-up.
type Stats struct {
	TotalAdsShown       int              `json:"total_ads_shown"`
	MaleAdsShown        int              `json:"male_ads_shown"`
	FemaleAdsShown      int              `json:"female_ads_shown"`
	AvailableMaleAds    int              `json:"available_male_ads"`
	AvailableFemaleAds  int              `json:"available_female_ads"`
	AvailableNeutralAds int              `json:"available_neutral_ads"`
	CurrentAd           *models.AdRecord `json:"current_ad"`
}

// Selector turns a positive trigger decision into a concrete ad.
type Selector struct {
	catalog  *Catalog
	trigger  *Trigger
	recorder *Recorder

	mu      sync.Mutex
	rng     *rand.Rand
	history *ringbuf.Ring[models.AdHistoryEntry]
}

// NewSelector wires the selector. A nil rng gets a randomly seeded one.
func NewSelector(catalog *Catalog, trigger *Trigger, recorder *Recorder, historySize int, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Selector{
		catalog:  catalog,
		trigger:  trigger,
		recorder: recorder,
		rng:      rng,
		history:  ringbuf.New[models.AdHistoryEntry](historySize),
	}
}

// Select picks an asset for aud, puts it on screen and records the display.
// It always returns a record.
func (s *Selector) Select(ctx context.Context, aud models.Audience) models.AdRecord {
	s.mu.Lock()
	asset := s.catalog.pick(aud, s.rng)
	s.mu.Unlock()

	if asset.ID == "" {
		asset.ID = fallbackID(aud, asset.DisplayName)
	}

	rec := models.AdRecord{AdAsset: asset, Audience: aud}
	rec.Timestamp = s.trigger.Commit(rec)

	s.recorder.Record(ctx, rec)
	observability.AdsDisplayed.WithLabelValues(string(aud)).Inc()

	s.mu.Lock()
	s.history.Push(models.AdHistoryEntry{Ad: rec, Timestamp: rec.Timestamp})
	s.mu.Unlock()

	return rec
}

func fallbackID(aud models.Audience, name string) string {
	if name == "" {
		name = "UNKNOWN"
	}
	clean := strings.NewReplacer(" ", "_", "'", "").Replace(name)
	return strings.ToUpper(string(aud)) + "_" + strings.ToUpper(clean)
}

// Current returns the ad on screen, if any.
func (s *Selector) Current() *models.AdRecord {
	return s.trigger.Current()
}

func (s *Selector) Clear() {
	s.trigger.Clear()
}

// History returns the newest limit entries, oldest first. limit <= 0 means
// DefaultHistoryLimit.
func (s *Selector) History(limit int) []models.AdHistoryEntry {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Last(limit)
}

func (s *Selector) Stats() Stats {
	s.mu.Lock()
	entries := s.history.Slice()
	s.mu.Unlock()

	st := Stats{
		TotalAdsShown:       len(entries),
		AvailableMaleAds:    s.catalog.Size(models.AudienceMale),
		AvailableFemaleAds:  s.catalog.Size(models.AudienceFemale),
		AvailableNeutralAds: s.catalog.Size(models.AudienceNeutral),
		CurrentAd:           s.trigger.Current(),
	}
	for _, e := range entries {
		switch e.Ad.Audience {
		case models.AudienceMale:
			st.MaleAdsShown++
		case models.AudienceFemale:
			st.FemaleAdsShown++
		}
	}
	return st
}

func (s *Selector) Analytics(ctx context.Context) Analytics {
	return s.recorder.Analytics(ctx)
}
