package ads

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/observability"
)

// Store persists display counts keyed by asset id with upsert-increment
// semantics.
type Store interface {
	IncrementDisplay(ctx context.Context, rec models.AdRecord, at time.Time) error
	ListDisplays(ctx context.Context) ([]models.AdDisplayRecord, error)
}

// TopDisplayed is the length of Analytics.MostDisplayed.
const TopDisplayed = 10

// Recorder writes display events to the store and falls back to an
// in-memory mirror when the store fails. It never returns store errors.
type Recorder struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	mirror map[string]*models.AdDisplayRecord
}

// NewRecorder wraps store. A nil store records to memory only.
func NewRecorder(store Store, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		store:  store,
		now:    now,
		mirror: make(map[string]*models.AdDisplayRecord),
	}
}

// Record counts one display of rec.
func (r *Recorder) Record(ctx context.Context, rec models.AdRecord) {
	at := r.now()
	if r.store != nil {
		err := r.store.IncrementDisplay(ctx, rec, at)
		if err == nil {
			return
		}
		slog.Warn("analytics store write failed, using memory", "ad_id", rec.ID, "error", err)
		observability.AnalyticsFallback.Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mirror[rec.ID]
	if !ok {
		m = &models.AdDisplayRecord{
			AdID:      rec.ID,
			CreatedAt: at,
		}
		r.mirror[rec.ID] = m
	}
	m.Name = rec.DisplayName
	m.Path = rec.MediaPath
	m.Type = rec.MediaType
	m.Audience = rec.Audience
	m.DisplayCount++
	m.LastDisplayed = at
}

// Records returns persisted and mirrored records merged per asset id, taking
// the larger count. Sorted by count descending, then id.
func (r *Recorder) Records(ctx context.Context) []models.AdDisplayRecord {
	merged := make(map[string]models.AdDisplayRecord)

	if r.store != nil {
		persisted, err := r.store.ListDisplays(ctx)
		if err != nil {
			slog.Warn("analytics store read failed", "error", err)
		}
		for _, rec := range persisted {
			merged[rec.AdID] = rec
		}
	}

	r.mu.Lock()
	for id, m := range r.mirror {
		cur, ok := merged[id]
		if !ok {
			merged[id] = *m
			continue
		}
		if m.DisplayCount > cur.DisplayCount {
			cur.DisplayCount = m.DisplayCount
		}
		if m.LastDisplayed.After(cur.LastDisplayed) {
			cur.LastDisplayed = m.LastDisplayed
		}
		merged[id] = cur
	}
	r.mu.Unlock()

	out := make([]models.AdDisplayRecord, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	sortByCount(out)
	return out
}

// Analytics is the merged display report.
type Analytics struct {
	MaleAds       []models.AdDisplayRecord `json:"male_ads"`
	FemaleAds     []models.AdDisplayRecord `json:"female_ads"`
	NeutralAds    []models.AdDisplayRecord `json:"neutral_ads"`
	TotalDisplays int                      `json:"total_displays"`
	MaleTotal     int                      `json:"male_total"`
	FemaleTotal   int                      `json:"female_total"`
	MostDisplayed []models.AdDisplayRecord `json:"most_displayed"`
}

func (r *Recorder) Analytics(ctx context.Context) Analytics {
	records := r.Records(ctx)

	a := Analytics{
		MaleAds:       []models.AdDisplayRecord{},
		FemaleAds:     []models.AdDisplayRecord{},
		NeutralAds:    []models.AdDisplayRecord{},
		MostDisplayed: records[:min(TopDisplayed, len(records))],
	}
	for _, rec := range records {
		a.TotalDisplays += rec.DisplayCount
		switch rec.Audience {
		case models.AudienceMale:
			a.MaleAds = append(a.MaleAds, rec)
			a.MaleTotal += rec.DisplayCount
		case models.AudienceFemale:
			a.FemaleAds = append(a.FemaleAds, rec)
			a.FemaleTotal += rec.DisplayCount
		case models.AudienceNeutral:
			a.NeutralAds = append(a.NeutralAds, rec)
		}
	}
	return a
}

func sortByCount(recs []models.AdDisplayRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].DisplayCount != recs[j].DisplayCount {
			return recs[i].DisplayCount > recs[j].DisplayCount
		}
		return recs[i].AdID < recs[j].AdID
	})
}
