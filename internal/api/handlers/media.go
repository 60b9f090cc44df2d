package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/crowdsense/internal/storage"
)

// MediaStore opens ad creatives held in object storage.
type MediaStore interface {
	OpenObject(ctx context.Context, key string) (*storage.MediaObject, error)
}

type MediaHandler struct {
	store MediaStore
}

func NewMediaHandler(store MediaStore) *MediaHandler {
	return &MediaHandler{store: store}
}

// Object streams the creative stored under the wildcard key.
func (h *MediaHandler) Object(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media key"})
		return
	}

	obj, err := h.store.OpenObject(c.Request.Context(), key)
	if err != nil {
		slog.Debug("open media object", "key", key, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "media not found"})
		return
	}
	defer obj.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, obj.Size, contentType, obj, nil)
}
