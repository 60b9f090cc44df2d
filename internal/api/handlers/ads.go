package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/crowdsense/internal/ads"
	"github.com/your-org/crowdsense/internal/models"
)

// AdService is the read side of the ad selector plus the manual clear.
type AdService interface {
	Current() *models.AdRecord
	Stats() ads.Stats
	Analytics(ctx context.Context) ads.Analytics
	History(limit int) []models.AdHistoryEntry
	Clear()
}

type AdHandler struct {
	ads AdService
}

func NewAdHandler(ads AdService) *AdHandler {
	return &AdHandler{ads: ads}
}

func (h *AdHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, CurrentAdResponse{Ad: h.ads.Current()})
}

func (h *AdHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ads.Stats())
}

func (h *AdHandler) Analytics(c *gin.Context) {
	c.JSON(http.StatusOK, h.ads.Analytics(c.Request.Context()))
}

func (h *AdHandler) History(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(ads.DefaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	history := h.ads.History(limit)
	c.JSON(http.StatusOK, AdHistoryResponse{History: history, Total: len(history)})
}

func (h *AdHandler) Clear(c *gin.Context) {
	h.ads.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
