package controllers

import (
	"net/http"

	"github.com/douxbatter/storefront/services"
	"github.com/douxbatter/storefront/utils"
	"github.com/gin-gonic/gin"
)

// OrderController serves checkout and order lookup for customers.
type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateOrder -> validate the cart, store the order and return the payment page.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse{
			Error:  "invalid request body",
			Fields: []utils.FieldIssue{{Field: "body", Message: err.Error()}},
		})
		return
	}

	result, err := oc.Orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		reference := ""
		if result != nil {
			reference = result.ReferenceNumber
		}
		respondServiceError(c, err, reference)
		return
	}

	utils.RespondJSON(c, http.StatusOK, result)
}

// GetOrderByReference -> order with its items, for the confirmation page.
func (oc *OrderController) GetOrderByReference(c *gin.Context) {
	order, err := oc.Orders.GetOrderByReference(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondServiceError(c, err, "")
		return
	}
	utils.RespondJSON(c, http.StatusOK, order)
}

// RetryPayment -> fresh payment page for an unpaid order.
func (oc *OrderController) RetryPayment(c *gin.Context) {
	reference := c.Param("reference")
	result, err := oc.Orders.RetryPayment(c.Request.Context(), reference)
	if err != nil {
		if result == nil {
			reference = ""
		}
		respondServiceError(c, err, reference)
		return
	}
	utils.RespondJSON(c, http.StatusOK, gin.H{
		"referenceNumber": result.ReferenceNumber,
		"paymentUrl":      result.PaymentURL,
	})
}
