// Package ads decides when an ad should change, picks the creative for the
// audience in view and keeps display statistics.
package ads

import (
	"sync"
	"time"

	"github.com/your-org/crowdsense/internal/models"
)

const (
	DefaultDisplayDuration = 15 * time.Second
	DefaultTriggerDelay    = 2 * time.Second
)

type TriggerConfig struct {
	DisplayDuration time.Duration // minimum time an ad stays up unless the majority flips
	TriggerDelay    time.Duration // per-audience cooldown between triggers
}

func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		DisplayDuration: DefaultDisplayDuration,
		TriggerDelay:    DefaultTriggerDelay,
	}
}

// Decision is the outcome of one Decide call. When Show is false, Current is
// the ad still on screen, if any.
type Decision struct {
	Show    bool
	Target  models.Audience
	Current *models.AdRecord
}

// Trigger is the display state machine: Idle, or Showing(audience, start).
type Trigger struct {
	mu  sync.Mutex
	cfg TriggerConfig
	now func() time.Time

	current      *models.AdRecord
	startedAt    time.Time
	lastTrigger  map[models.Audience]time.Time
	lastMajority models.Audience
}

// NewTrigger returns an idle trigger. A nil clock means time.Now.
func NewTrigger(cfg TriggerConfig, now func() time.Time) *Trigger {
	if now == nil {
		now = time.Now
	}
	return &Trigger{
		cfg:         cfg,
		now:         now,
		lastTrigger: make(map[models.Audience]time.Time),
	}
}

// Decide reports whether a new ad should be shown for majority given the
// current headcount.
func (t *Trigger) Decide(majority models.Audience, counts models.CrowdCount) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	if counts.Total == 0 {
		return Decision{}
	}

	now := t.now()
	if t.current != nil && now.Sub(t.startedAt) < t.cfg.DisplayDuration {
		if majority != t.lastMajority {
			return Decision{Show: true, Target: majority}
		}
		return Decision{Current: t.copyCurrent()}
	}

	if last, ok := t.lastTrigger[majority]; ok && now.Sub(last) < t.cfg.TriggerDelay {
		return Decision{}
	}
	return Decision{Show: true, Target: majority}
}

// Commit makes rec the ad on screen. It returns the time the display started.
func (t *Trigger) Commit(rec models.AdRecord) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.current = &rec
	t.startedAt = now
	t.lastTrigger[rec.Audience] = now
	t.lastMajority = rec.Audience
	return now
}

// Current returns a copy of the ad on screen, or nil once its display
// duration has elapsed.
func (t *Trigger) Current() *models.AdRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return nil
	}
	if t.now().Sub(t.startedAt) >= t.cfg.DisplayDuration {
		t.current = nil
		t.startedAt = time.Time{}
		return nil
	}
	return t.copyCurrent()
}

// Clear takes the current ad down. Cooldowns are kept.
func (t *Trigger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.startedAt = time.Time{}
}

func (t *Trigger) copyCurrent() *models.AdRecord {
	if t.current == nil {
		return nil
	}
	c := *t.current
	return &c
}
