package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"fluxgallery/internal/enhance"
	"fluxgallery/internal/ids"
	"fluxgallery/internal/middleware"
)

type generateRequest struct {
	Text  string `json:"text" binding:"required"`
	Style string `json:"style"`
}

type generateResponse struct {
	JobID  string `json:"jobId"`
	Prompt string `json:"prompt"`
}

// Generate enhances the text and queues a generation job for the worker. The
// gallery learns about the finished image through the update broadcast, not
// through this request.
func (h HandlerSet) Generate(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": textRequiredMessage})
		return
	}

	result, err := h.enhancer.Enhance(c.Request.Context(), enhance.Request{Text: req.Text, Style: req.Style})
	if err != nil {
		if errors.Is(err, enhance.ErrTextRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": textRequiredMessage})
			return
		}
		h.log.Error().Err(err).Msg("unexpected enhance error")
		c.JSON(http.StatusBadRequest, gin.H{"error": textRequiredMessage})
		return
	}

	style := req.Style
	if style == "" {
		style = enhance.DefaultStyle
	}

	jobID := ids.New()
	values := map[string]any{
		"jobId":      jobID,
		"userId":     userID,
		"prompt":     result.Prompt,
		"style":      style,
		"enqueuedAt": time.Now().UnixMilli(),
	}
	if _, err := h.cache.XAdd(c.Request.Context(), &redis.XAddArgs{
		Stream: h.cfg.Queue.Stream,
		Values: values,
	}).Result(); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("enqueue generation failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation_unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, generateResponse{
		JobID:  jobID,
		Prompt: result.Prompt,
	})
}
