package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusprint/print-api/internal/dto"
	"github.com/campusprint/print-api/internal/service"
	appErrors "github.com/campusprint/print-api/pkg/errors"
	"github.com/campusprint/print-api/pkg/response"
)

// OrderHandler exposes the order intake, lookup and fulfillment endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	exports *service.ExportService
	logger  *zap.Logger
}

// NewOrderHandler constructs an order handler.
func NewOrderHandler(orders *service.OrderService, exports *service.ExportService, logger *zap.Logger) *OrderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderHandler{orders: orders, exports: exports, logger: logger}
}

// actingAdmin names the authenticated admin for audit logs.
func (h *OrderHandler) actingAdmin(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.Username
	}
	return "unknown"
}

// Create godoc
// @Summary Create an order
// @Description Register a print order; cost and tracking code are assigned server-side
// @Tags Orders
// @Accept json
// @Produce json
// @Param payload body dto.CreateOrderRequest true "Order payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /orders [post]
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid order payload"))
		return
	}

	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, order)
}

// Status godoc
// @Summary Look up order status
// @Description Public status view by tracking code or order ID
// @Tags Orders
// @Produce json
// @Param token path string true "Tracking code or order ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /orders/status/{token} [get]
func (h *OrderHandler) Status(c *gin.Context) {
	summary, err := h.orders.StatusSummary(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Search godoc
// @Summary Search orders by student name
// @Description Case-insensitive substring match, newest first
// @Tags Orders
// @Produce json
// @Param name path string true "Student name fragment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /orders/search/{name} [get]
func (h *OrderHandler) Search(c *gin.Context) {
	summaries, err := h.orders.SearchByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summaries, map[string]interface{}{"count": len(summaries)})
}

// List godoc
// @Summary List all orders
// @Description Full order details, admin only
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, map[string]interface{}{"count": len(orders)})
}

// UpdateStatus godoc
// @Summary Advance order status
// @Description Move an order along pending -> printed -> collected
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param payload body dto.UpdateStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logger.Info("order status updated",
		zap.String("orderId", order.ID),
		zap.String("status", string(order.Status)),
		zap.String("admin", h.actingAdmin(c)),
	)
	response.JSON(c, http.StatusOK, order, nil)
}

// Delete godoc
// @Summary Delete a collected order
// @Tags Orders
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /orders/{id} [delete]
func (h *OrderHandler) Delete(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	h.logger.Info("order deleted",
		zap.String("orderId", c.Param("id")),
		zap.String("admin", h.actingAdmin(c)),
	)
	response.NoContent(c)
}

// Export godoc
// @Summary Export the order book
// @Description Download every order as CSV or PDF
// @Tags Orders
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /orders/export [get]
func (h *OrderHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", service.ExportFormatCSV)

	result, err := h.exports.Generate(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
