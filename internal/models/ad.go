package models

import (
	"strings"
	"time"
)

// Audience is an ad bucket: the majority gender a creative is aimed at.
type Audience string

const (
	AudienceMale    Audience = "male"
	AudienceFemale  Audience = "female"
	AudienceNeutral Audience = "neutral"
)

// Audiences lists every bucket in inventory order.
var Audiences = []Audience{AudienceMale, AudienceFemale, AudienceNeutral}

// ParseAudience returns the bucket for s, defaulting to neutral.
func ParseAudience(s string) Audience {
	switch Audience(strings.ToLower(strings.TrimSpace(s))) {
	case AudienceMale:
		return AudienceMale
	case AudienceFemale:
		return AudienceFemale
	default:
		return AudienceNeutral
	}
}

// MajorityAudience derives the ad bucket from a headcount.
// Ties with at least one male go to male; no one known is neutral.
func MajorityAudience(c CrowdCount) Audience {
	switch {
	case c.Male > c.Female:
		return AudienceMale
	case c.Female > c.Male:
		return AudienceFemale
	case c.Male > 0:
		return AudienceMale
	default:
		return AudienceNeutral
	}
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// AdAsset is one creative in the catalog.
type AdAsset struct {
	ID          string    `json:"id"`
	MediaPath   string    `json:"path"`
	MediaType   MediaType `json:"type"`
	DisplayName string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

// AdRecord is an asset as it is being shown to a bucket.
type AdRecord struct {
	AdAsset
	Audience  Audience  `json:"gender"`
	Timestamp time.Time `json:"timestamp"`
}

// AdHistoryEntry is one entry in the rolling display history.
type AdHistoryEntry struct {
	Ad        AdRecord  `json:"ad"`
	Timestamp time.Time `json:"timestamp"`
}

// AdDisplayRecord is the persisted display statistic for one asset.
type AdDisplayRecord struct {
	AdID          string    `json:"ad_id"`
	Name          string    `json:"ad_name"`
	Path          string    `json:"ad_path"`
	Type          MediaType `json:"ad_type"`
	Audience      Audience  `json:"gender"`
	DisplayCount  int       `json:"display_count"`
	LastDisplayed time.Time `json:"last_displayed"`
	CreatedAt     time.Time `json:"created_at"`
}
