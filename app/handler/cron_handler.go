package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imgtutu/internal/service"
	"imgtutu/pkg/logger"
)

// CronHandler exposes the sweeper to an external scheduler. Deployments
// without a resident process trigger sweeps through this endpoint.
type CronHandler struct {
	sweeperService *service.SweeperService
}

// NewCronHandler creates cron handler
func NewCronHandler(sweeperService *service.SweeperService) *CronHandler {
	return &CronHandler{sweeperService: sweeperService}
}

// ProcessPendingTasks runs one sweep pass
// @Summary Sweep stale and retryable tasks
// @Tags cron
// @Produce json
// @Param key query string true "Cron shared key"
// @Success 200 {object} model.SweepResult
// @Router /cron/process-pending-tasks [get]
func (h *CronHandler) ProcessPendingTasks(c *gin.Context) {
	result, err := h.sweeperService.Sweep(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "sweep failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats reports task counts per status
// @Summary Task queue statistics
// @Tags cron
// @Produce json
// @Param key query string true "Cron shared key"
// @Success 200 {object} model.QueueStats
// @Router /cron/stats [get]
func (h *CronHandler) Stats(c *gin.Context) {
	stats, err := h.sweeperService.QueueStats(c.Request.Context())
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to collect queue stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
