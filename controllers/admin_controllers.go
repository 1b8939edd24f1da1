package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
)

// AdminOrderController backs the order dashboard.
type AdminOrderController struct {
	Orders *services.OrderService
	Slips  *services.PackingSlipRenderer
}

func NewAdminOrderController(orders *services.OrderService, slips *services.PackingSlipRenderer) *AdminOrderController {
	return &AdminOrderController{Orders: orders, Slips: slips}
}

func orderID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return uint(id), true
}

// ListOrders -> GET /admin/orders?status=&payment_status=&page=&limit=
func (ac *AdminOrderController) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := ac.Orders.ListOrders(c.Request.Context(), services.OrderFilter{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, result)
}

func (ac *AdminOrderController) GetOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := ac.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, order)
}

// UpdateOrder -> PATCH status, paymentStatus and/or adminNotes.
func (ac *AdminOrderController) UpdateOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}

	var patch services.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.RespondMessage(c, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := ac.Orders.UpdateOrder(c.Request.Context(), id, patch)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, order)
}

func (ac *AdminOrderController) DeleteOrder(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	if err := ac.Orders.DeleteOrder(c.Request.Context(), id); err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, gin.H{"success": true})
}

// OrderStats -> counts per status and paid revenue for the dashboard header.
func (ac *AdminOrderController) OrderStats(c *gin.Context) {
	stats, err := ac.Orders.OrderStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, stats)
}

// PackingSlip -> PDF for the kitchen.
func (ac *AdminOrderController) PackingSlip(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := ac.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "")
		return
	}

	pdf, err := ac.Slips.Render(order)
	if err != nil {
		utils.ErrorLogger.WithField("reference", order.ReferenceNumber).WithError(err).Error("Failed to render packing slip")
		respondServiceError(c, err, order.ReferenceNumber)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="packing-slip-%s.pdf"`, order.ReferenceNumber))
	c.Data(http.StatusOK, "application/pdf", pdf)
}
