package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats returns the subscriber counts per feature.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		h.logger.Error("load stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
