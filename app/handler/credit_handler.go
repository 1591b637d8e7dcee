package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imgtutu/app/middleware"
	"imgtutu/internal/model"
	"imgtutu/internal/service"
	"imgtutu/pkg/logger"
)

// CreditHandler handles credit balance operations
type CreditHandler struct {
	creditService *service.CreditService
}

// NewCreditHandler creates credit handler
func NewCreditHandler(creditService *service.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// Balance returns the caller's credit balance
// @Summary Get credit balance
// @Tags credits
// @Produce json
// @Success 200 {object} model.CreditsResponse
// @Router /api/credits/get [get]
func (h *CreditHandler) Balance(c *gin.Context) {
	resp, err := h.creditService.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to read balance: %v", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Update applies an internal credit mutation. Only service-to-service
// callers reach this; the router guards it with the internal token.
// @Summary Update credits
// @Tags credits
// @Accept json
// @Produce json
// @Param request body model.CreditUpdateRequest true "Credit mutation"
// @Success 200 {object} model.CreditsResponse
// @Router /api/credits/update [post]
func (h *CreditHandler) Update(c *gin.Context) {
	if !middleware.IsInternal(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "internal token required"})
		return
	}

	var req model.CreditUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resp, err := h.creditService.Update(c.Request.Context(), req.UserID, &req)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to update credits, user_id: %s, error: %v", req.UserID, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
