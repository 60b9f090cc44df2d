package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/crowdsense/internal/pipeline"
)

// recentAds is how many history entries the dashboard view carries.
const recentAds = 10

// SnapshotReader exposes the last state computed by the processing worker.
type SnapshotReader interface {
	Snapshot() pipeline.Snapshot
}

type CrowdHandler struct {
	crowd SnapshotReader
	ads   AdService
}

func NewCrowdHandler(crowd SnapshotReader, ads AdService) *CrowdHandler {
	return &CrowdHandler{crowd: crowd, ads: ads}
}

func (h *CrowdHandler) PeopleCount(c *gin.Context) {
	s := h.crowd.Snapshot()
	c.JSON(http.StatusOK, PeopleCountResponse{CrowdCount: s.Counts, UpdatedAt: s.UpdatedAt})
}

// Tracks lists confirmed tracks only.
func (h *CrowdHandler) Tracks(c *gin.Context) {
	s := h.crowd.Snapshot()
	c.JSON(http.StatusOK, TrackListResponse{Tracks: s.Tracks, Total: len(s.Tracks)})
}

func (h *CrowdHandler) Analytics(c *gin.Context) {
	s := h.crowd.Snapshot()
	c.JSON(http.StatusOK, AnalyticsResponse{
		CrowdStats:    s.Stats,
		CurrentCounts: s.Counts,
		AdStats:       h.ads.Stats(),
		RecentAds:     h.ads.History(recentAds),
	})
}
