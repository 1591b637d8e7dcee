package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"imgtutu/app/middleware"
	"imgtutu/internal/model"
	"imgtutu/internal/service"
	"imgtutu/pkg/logger"
)

// TaskHandler handles generation task operations
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler creates task handler
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Generate submits a generation task
// @Summary Submit image generation task
// @Description Charge one credit and enqueue an async generation task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body model.GenerateRequest true "Generation request"
// @Success 200 {object} model.GenerateResponse
// @Router /api/generate-image-task [post]
func (h *TaskHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WarnCtx(c.Request.Context(), "invalid generate request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.taskService.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to create task: %v", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List returns the caller's tasks, newest first
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Param limit query int false "Max entries"
// @Param offset query int false "Entries to skip"
// @Success 200 {object} map[string]interface{}
// @Router /api/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tasks, err := h.taskService.List(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to list tasks: %v", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// Status gets task status
// @Summary Get task status
// @Description Get task status by task ID
// @Tags tasks
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {object} model.TaskStatusResponse
// @Router /api/image-task-status/{task_id} [get]
func (h *TaskHandler) Status(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id required"})
		return
	}

	resp, err := h.taskService.Status(c.Request.Context(), middleware.UserID(c), taskID, middleware.IsInternal(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Cancel cancels a task
// @Summary Cancel task
// @Description Cancel a non-terminal task and refund its credit
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body model.CancelRequest true "Cancel request"
// @Success 200 {object} model.CancelResponse
// @Router /api/generate-image/cancel [post]
func (h *TaskHandler) Cancel(c *gin.Context) {
	var req model.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taskId required"})
		return
	}

	resp, err := h.taskService.Cancel(c.Request.Context(), middleware.UserID(c), req.TaskID)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to cancel task, task_id: %s, error: %v", req.TaskID, err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
