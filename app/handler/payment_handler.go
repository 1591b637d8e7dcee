package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"imgtutu/app/middleware"
	"imgtutu/internal/model"
	"imgtutu/internal/service"
	"imgtutu/pkg/logger"
)

// PaymentHandler handles credit top-up orders
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates payment handler
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateOrder creates a top-up order
// @Summary Create top-up order
// @Tags payment
// @Accept json
// @Produce json
// @Param request body model.CreateOrderRequest true "Plan selection"
// @Success 200 {object} model.CreateOrderResponse
// @Router /api/payment/create-order [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req model.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan required"})
		return
	}

	resp, err := h.paymentService.CreateOrder(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to create order: %v", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OrderStatus polls an order, settling it when the gateway reports paid
// @Summary Get order status
// @Tags payment
// @Produce json
// @Param order_id path string true "Order ID"
// @Success 200 {object} model.OrderStatusResponse
// @Router /api/payment/order-status/{order_id} [get]
func (h *PaymentHandler) OrderStatus(c *gin.Context) {
	orderID := c.Param("order_id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id required"})
		return
	}

	resp, err := h.paymentService.OrderStatus(c.Request.Context(), middleware.UserID(c), orderID)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), "failed to read order status, order_id: %s, error: %v", orderID, err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
