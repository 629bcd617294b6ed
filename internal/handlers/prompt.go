package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fluxgallery/internal/enhance"
)

// textRequiredMessage is shown verbatim in the UI, hence the localization.
const textRequiredMessage = "텍스트를 제공해주세요."

// TranslatePrompt enhances rough user text into an image-generation prompt.
// Missing text is the only error this endpoint ever returns; completion
// failures come back as 200 with a fallback prompt so the generation flow is
// never blocked.
func (h HandlerSet) TranslatePrompt(c *gin.Context) {
	var req enhance.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": textRequiredMessage})
		return
	}

	result, err := h.enhancer.Enhance(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, enhance.ErrTextRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": textRequiredMessage})
			return
		}
		// Enhance absorbs everything else; treat anything unexpected the
		// same way rather than surface a 5xx.
		h.log.Error().Err(err).Msg("unexpected enhance error")
		c.JSON(http.StatusBadRequest, gin.H{"error": textRequiredMessage})
		return
	}

	c.JSON(http.StatusOK, result)
}
