package models

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds pushed to viewers and to the event stream.
const (
	EventCountUpdate     = "count_update"
	EventShowAd          = "show_ad"
	EventAnalyticsUpdate = "analytics_update"
)

// Event is the envelope published for every crowd/ad notification.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent stamps a payload with a fresh id.
func NewEvent(kind string, data any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      kind,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// DetectionSample is one entry of the rolling detection history.
type DetectionSample struct {
	CrowdCount
	Timestamp time.Time `json:"timestamp"`
}

// CrowdStats are the running totals the processing worker keeps.
type CrowdStats struct {
	FramesAnalyzed   int64             `json:"total_detections"`
	MaleDetections   int64             `json:"male_detections"`
	FemaleDetections int64             `json:"female_detections"`
	PeakCount        int               `json:"peak_count"`
	DetectionHistory []DetectionSample `json:"detection_history"`
}
