package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"audiofeedback/internal/models"
)

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	records, err := h.history.ListAnalyses(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list analyses failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list analyses failed"})
		return
	}
	if records == nil {
		records = make([]models.AnalysisRecord, 0)
	}
	c.JSON(http.StatusOK, gin.H{"analyses": records})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	id, ok := analysisID(c)
	if !ok {
		return
	}
	rec, err := h.history.GetAnalysis(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		h.logger.Error("get analysis failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get analysis failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) deleteAnalysis(c *gin.Context) {
	id, ok := analysisID(c)
	if !ok {
		return
	}
	rec, err := h.history.DeleteAnalysis(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		h.logger.Error("delete analysis failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete analysis failed"})
		return
	}
	// a re-upload of the same bytes is analysed again
	h.workers.Forget(c.Request.Context(), rec.Digest)
	c.Status(http.StatusNoContent)
}

func analysisID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis id"})
		return 0, false
	}
	return id, true
}
