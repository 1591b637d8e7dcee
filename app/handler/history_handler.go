package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"imgtutu/app/middleware"
	"imgtutu/internal/service"
	"imgtutu/pkg/logger"
)

// HistoryHandler handles generation history reads and deletion
type HistoryHandler struct {
	historyService *service.HistoryService
}

// NewHistoryHandler creates history handler
func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{historyService: historyService}
}

// List returns the caller's generation history, newest first
// @Summary List generation history
// @Tags history
// @Produce json
// @Param limit query int false "Max entries"
// @Param offset query int false "Entries to skip"
// @Success 200 {object} map[string]interface{}
// @Router /api/history [get]
func (h *HistoryHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.historyService.List(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list history: %v", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": records})
}

// Delete removes a single history entry owned by the caller
// @Summary Delete a history entry
// @Tags history
// @Produce json
// @Param id path int true "History entry ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/history/{id} [delete]
func (h *HistoryHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid history id"})
		return
	}

	if err := h.historyService.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to delete history entry %d: %v", id, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": 1})
}

// Clear deletes the caller's entire history
// @Summary Clear generation history
// @Tags history
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/history [delete]
func (h *HistoryHandler) Clear(c *gin.Context) {
	deleted, err := h.historyService.Clear(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to clear history: %v", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
