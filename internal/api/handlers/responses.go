package handlers

import (
	"time"

	"github.com/your-org/crowdsense/internal/ads"
	"github.com/your-org/crowdsense/internal/models"
)

type PeopleCountResponse struct {
	models.CrowdCount
	UpdatedAt time.Time `json:"updated_at"`
}

type TrackListResponse struct {
	Tracks []models.Track `json:"tracks"`
	Total  int            `json:"total"`
}

// AnalyticsResponse is the dashboard view: running crowd stats, the counts
// in view right now, ad stats and the most recent ads.
type AnalyticsResponse struct {
	models.CrowdStats
	CurrentCounts models.CrowdCount       `json:"current_counts"`
	AdStats       ads.Stats               `json:"ad_stats"`
	RecentAds     []models.AdHistoryEntry `json:"recent_ads"`
}

type CurrentAdResponse struct {
	Ad *models.AdRecord `json:"ad"`
}

type AdHistoryResponse struct {
	History []models.AdHistoryEntry `json:"history"`
	Total   int                     `json:"total"`
}
