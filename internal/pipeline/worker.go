// Package pipeline runs the single capture and processing worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/crowdsense/internal/ads"
	"github.com/your-org/crowdsense/internal/detect"
	"github.com/your-org/crowdsense/internal/models"
	"github.com/your-org/crowdsense/internal/observability"
	"github.com/your-org/crowdsense/internal/ringbuf"
	"github.com/your-org/crowdsense/internal/tracking"
)

// Source yields frames. Next must not block indefinitely.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
}

// Detector produces raw observations for a frame.
type Detector interface {
	Detect(frame image.Image) ([]models.Observation, error)
}

// Publisher receives every event the worker emits.
type Publisher interface {
	Publish(ctx context.Context, ev models.Event) error
}

type Config struct {
	DetectEvery      int           // run detection on every Nth frame
	ConfirmHits      int           // matches before a track is counted
	ScoreThreshold   float64       // dedupe baseline confidence
	OverlapThreshold float64       // dedupe IoU threshold
	ErrorBackoff     time.Duration // pause after a failed frame
	HistorySize      int           // detection history entries kept
}

func DefaultConfig() Config {
	return Config{
		DetectEvery:      2,
		ConfirmHits:      tracking.DefaultConfirmHits,
		ScoreThreshold:   0.75,
		OverlapThreshold: 0.4,
		ErrorBackoff:     time.Second,
		HistorySize:      50,
	}
}

// Snapshot is the last computed state, safe to hand to readers.
type Snapshot struct {
	Counts    models.CrowdCount `json:"counts"`
	Tracks    []models.Track    `json:"tracks"`
	Stats     models.CrowdStats `json:"stats"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// AnalyticsUpdate is the payload of an analytics_update event.
type AnalyticsUpdate struct {
	models.CrowdStats
	CurrentCounts models.CrowdCount `json:"current_counts"`
	AdStats       ads.Stats         `json:"ad_stats"`
}

type Worker struct {
	src      Source
	det      Detector
	tracker  *tracking.Tracker
	trigger  *ads.Trigger
	selector *ads.Selector
	pubs     []Publisher
	cfg      Config
	now      func() time.Time

	frames int64 // only touched by the worker goroutine

	mu      sync.RWMutex
	stats   models.CrowdStats
	history *ringbuf.Ring[models.DetectionSample]
	snap    Snapshot
}

func NewWorker(src Source, det Detector, tracker *tracking.Tracker, trigger *ads.Trigger, selector *ads.Selector, cfg Config, pubs ...Publisher) *Worker {
	if cfg.DetectEvery < 1 {
		cfg.DetectEvery = 1
	}
	return &Worker{
		src:      src,
		det:      det,
		tracker:  tracker,
		trigger:  trigger,
		selector: selector,
		pubs:     pubs,
		cfg:      cfg,
		now:      time.Now,
		history:  ringbuf.New[models.DetectionSample](cfg.HistorySize),
		snap:     Snapshot{Tracks: []models.Track{}, Stats: models.CrowdStats{DetectionHistory: []models.DetectionSample{}}},
	}
}

// Run processes frames until ctx is done. A failed frame is logged and the
// loop resumes after the error backoff.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("processing worker started", "detect_every", w.cfg.DetectEvery)
	defer slog.Info("processing worker stopped")

	for ctx.Err() == nil {
		if err := w.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("frame error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ErrorBackoff):
			}
		}
	}
}

// Step handles one frame. Capture and detection errors still advance the
// tracker with zero observations before being returned.
func (w *Worker) Step(ctx context.Context) error {
	frame, err := w.src.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		observability.FrameErrors.WithLabelValues("capture").Inc()
		w.process(ctx, nil)
		return fmt.Errorf("capture: %w", err)
	}

	// Detection runs on frames N, 2N, 3N...
	w.frames++
	if w.frames%int64(w.cfg.DetectEvery) != 0 {
		observability.FramesSkipped.Inc()
		return nil
	}

	observations, err := w.det.Detect(frame)
	if err != nil {
		stage := "detect"
		if errors.Is(err, detect.ErrEmptyFrame) {
			stage = "empty_frame"
		}
		observability.FrameErrors.WithLabelValues(stage).Inc()
		w.process(ctx, nil)
		return fmt.Errorf("detect: %w", err)
	}

	w.process(ctx, detect.Deduplicate(observations, w.cfg.ScoreThreshold, w.cfg.OverlapThreshold))
	return nil
}

func (w *Worker) process(ctx context.Context, observations []models.Observation) {
	observability.FramesProcessed.Inc()
	observability.ObservationsTotal.Add(float64(len(observations)))

	tracks := w.tracker.Update(observations)
	counts := tracking.Aggregate(tracks, w.cfg.ConfirmHits)
	confirmed := tracking.Confirmed(tracks, w.cfg.ConfirmHits)

	observability.ActiveTracks.Set(float64(len(tracks)))
	observability.CrowdCount.WithLabelValues("total").Set(float64(counts.Total))
	observability.CrowdCount.WithLabelValues("male").Set(float64(counts.Male))
	observability.CrowdCount.WithLabelValues("female").Set(float64(counts.Female))

	stats := w.record(counts, confirmed)
	w.publish(ctx, models.EventCountUpdate, counts)

	if counts.Total == 0 {
		return
	}
	d := w.trigger.Decide(models.MajorityAudience(counts), counts)
	if !d.Show {
		return
	}

	ad := w.selector.Select(ctx, d.Target)
	slog.Info("showing ad", "ad_id", ad.ID, "audience", ad.Audience, "total", counts.Total, "male", counts.Male, "female", counts.Female)
	w.publish(ctx, models.EventShowAd, ad)
	w.publish(ctx, models.EventAnalyticsUpdate, AnalyticsUpdate{
		CrowdStats:    stats,
		CurrentCounts: counts,
		AdStats:       w.selector.Stats(),
	})
}

// record folds counts into the running stats and swaps the snapshot.
func (w *Worker) record(counts models.CrowdCount, confirmed []models.Track) models.CrowdStats {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	w.stats.FramesAnalyzed++
	w.stats.MaleDetections += int64(counts.Male)
	w.stats.FemaleDetections += int64(counts.Female)
	w.stats.PeakCount = max(w.stats.PeakCount, counts.Total)
	w.history.Push(models.DetectionSample{CrowdCount: counts, Timestamp: now})

	stats := w.stats
	stats.DetectionHistory = w.history.Slice()

	w.snap = Snapshot{
		Counts:    counts,
		Tracks:    confirmed,
		Stats:     stats,
		UpdatedAt: now,
	}
	return stats
}

func (w *Worker) publish(ctx context.Context, kind string, data any) {
	if len(w.pubs) == 0 {
		return
	}
	ev := models.NewEvent(kind, data)
	for _, p := range w.pubs {
		if err := p.Publish(ctx, ev); err != nil {
			slog.Warn("publish event", "type", kind, "error", err)
		}
	}
}

// Snapshot returns a copy of the last computed state.
func (w *Worker) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := w.snap
	s.Tracks = append([]models.Track(nil), w.snap.Tracks...)
	s.Stats.DetectionHistory = append([]models.DetectionSample(nil), w.snap.Stats.DetectionHistory...)
	return s
}

// Counts returns the last computed headcount.
func (w *Worker) Counts() models.CrowdCount {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snap.Counts
}
