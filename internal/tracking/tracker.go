// Package tracking keeps a stable identity per person across frames using
// greedy nearest-centroid association, and reduces confirmed identities to a
// headcount.
//
// The association is approximate. Two people crossing quickly can swap or
// fragment identities; nothing corrects for that after the fact.
package tracking

import (
	"sort"
	"sync"

	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/ringbuf"
)

type Config struct {
	MaxDisappeared int     // frames a track may go unmatched before removal
	MaxDistance    float64 // max centroid distance (px) for a match
	LabelHistory   int     // number of non-Unknown labels kept for voting
}

func DefaultConfig() Config {
	return Config{
		MaxDisappeared: 50,
		MaxDistance:    150,
		LabelHistory:   20,
	}
}

type track struct {
	id              int64
	centroid        models.Point
	box             models.Box
	gender          models.Gender
	history         *ringbuf.Ring[models.Gender]
	confidence      float64
	hits            int
	framesSinceSeen int
}

// Tracker owns every live track. All methods are safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	tracks map[int64]*track
	nextID int64
	cfg    Config
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		tracks: make(map[int64]*track),
		cfg:    cfg,
	}
}

type candidatePair struct {
	row, col int
	dist     float64
}

// Update consumes one frame of observations and returns a snapshot of the
// live tracks ordered by id.
func (t *Tracker) Update(observations []models.Observation) []models.Track {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(observations) == 0 {
		for id, tr := range t.tracks {
			t.age(id, tr)
		}
		return t.snapshotLocked()
	}

	centroids := make([]models.Point, len(observations))
	for i, o := range observations {
		centroids[i] = o.Box.Center()
	}

	if len(t.tracks) == 0 {
		for i, o := range observations {
			t.register(centroids[i], o)
		}
		return t.snapshotLocked()
	}

	ids := t.sortedIDsLocked()
	pairs := make([]candidatePair, 0, len(ids)*len(observations))
	for row, id := range ids {
		existing := t.tracks[id].centroid
		for col, c := range centroids {
			pairs = append(pairs, candidatePair{row: row, col: col, dist: existing.Dist(c)})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].dist < pairs[j].dist })

	usedRows := make([]bool, len(ids))
	usedCols := make([]bool, len(observations))
	for _, p := range pairs {
		if p.dist > t.cfg.MaxDistance {
			break
		}
		if usedRows[p.row] || usedCols[p.col] {
			continue
		}
		t.match(t.tracks[ids[p.row]], centroids[p.col], observations[p.col])
		usedRows[p.row] = true
		usedCols[p.col] = true
	}

	for row, id := range ids {
		if !usedRows[row] {
			t.age(id, t.tracks[id])
		}
	}
	for col, o := range observations {
		if !usedCols[col] {
			t.register(centroids[col], o)
		}
	}

	return t.snapshotLocked()
}

// Snapshot returns a copy of the live tracks ordered by id.
func (t *Tracker) Snapshot() []models.Track {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}

// Reset drops every track. Ids keep increasing across resets.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = make(map[int64]*track)
}

func (t *Tracker) register(c models.Point, o models.Observation) {
	tr := &track{
		id:         t.nextID,
		centroid:   c,
		box:        o.Box,
		gender:     o.Gender,
		history:    ringbuf.New[models.Gender](t.cfg.LabelHistory),
		confidence: o.Confidence,
		hits:       1,
	}
	if o.Gender.Known() {
		tr.history.Push(o.Gender)
	} else {
		tr.gender = models.GenderUnknown
	}
	t.tracks[tr.id] = tr
	t.nextID++
}

func (t *Tracker) match(tr *track, c models.Point, o models.Observation) {
	tr.centroid = c
	tr.box = o.Box
	if o.Gender.Known() {
		tr.history.Push(o.Gender)
		tr.gender = majorityLabel(tr.history.Slice())
	}
	tr.confidence = max(tr.confidence, o.Confidence)
	tr.hits++
	tr.framesSinceSeen = 0
}

func (t *Tracker) age(id int64, tr *track) {
	tr.framesSinceSeen++
	if tr.framesSinceSeen > t.cfg.MaxDisappeared {
		delete(t.tracks, id)
	}
}

func (t *Tracker) sortedIDsLocked() []int64 {
	ids := make([]int64, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *Tracker) snapshotLocked() []models.Track {
	ids := t.sortedIDsLocked()
	out := make([]models.Track, 0, len(ids))
	for _, id := range ids {
		tr := t.tracks[id]
		out = append(out, models.Track{
			ID:              tr.id,
			Centroid:        tr.centroid,
			Box:             tr.box,
			Gender:          tr.gender,
			GenderHistory:   tr.history.Slice(),
			Confidence:      tr.confidence,
			Hits:            tr.hits,
			FramesSinceSeen: tr.framesSinceSeen,
		})
	}
	return out
}

// majorityLabel returns the most frequent label. On a tie the label that
// appears first in the history wins.
func majorityLabel(history []models.Gender) models.Gender {
	counts := make(map[models.Gender]int, 2)
	order := make([]models.Gender, 0, 2)
	for _, g := range history {
		if counts[g] == 0 {
			order = append(order, g)
		}
		counts[g]++
	}

	best, bestCount := models.GenderUnknown, 0
	for _, g := range order {
		if counts[g] > bestCount {
			best, bestCount = g, counts[g]
		}
	}
	return best
}
