package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fluxgallery/internal/events"
	"fluxgallery/internal/middleware"
	"fluxgallery/internal/repository"
)

type galleryImageResponse struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"image_url"`
	Prompt    string    `json:"prompt"`
	Style     string    `json:"style,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h HandlerSet) ListGallery(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	images, err := h.images.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("gallery list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "gallery_unavailable"})
		return
	}

	items := make([]galleryImageResponse, 0, len(images))
	for _, img := range images {
		items = append(items, galleryImageResponse{
			ID:        img.ID,
			ImageURL:  img.ImageURL,
			Prompt:    img.Prompt,
			Style:     img.Style,
			CreatedAt: img.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"images": items,
	})
}

func (h HandlerSet) DeleteImage(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	imageID := c.Param("id")
	if imageID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	if err := h.images.Delete(c.Request.Context(), imageID, userID); err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "image_not_found"})
			return
		}
		h.log.Error().Err(err).Str("image_id", imageID).Msg("gallery delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}

	if err := h.publisher.Publish(c.Request.Context(), events.GalleryUpdate{UserID: userID}); err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("gallery update publish failed")
	}

	c.Status(http.StatusNoContent)
}
