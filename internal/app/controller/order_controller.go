package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

type OrderLineRequest struct {
	ProductTypeID uint `json:"product_type_id" binding:"required"`
	Quantity      int  `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	BranchID      uint               `json:"branch_id" binding:"required"`
	PromotionID   *uint              `json:"promotion_id"`
	Address       string             `json:"address" binding:"required"`
	PaymentMethod string             `json:"payment_method" binding:"required,oneof=card transfer cash"`
	Lines         []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type CheckoutRequest struct {
	BranchID      uint   `json:"branch_id" binding:"required"`
	PromotionID   *uint  `json:"promotion_id"`
	Address       string `json:"address" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=card transfer cash"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateOrder places an order from explicit lines
// POST /api/v1/orders
func (ctrl *OrderController) CreateOrder(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	lines := make([]service.OrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.OrderLine{ProductTypeID: l.ProductTypeID, Quantity: l.Quantity}
	}

	order, err := ctrl.orderService.PlaceOrder(c.Request.Context(), service.PlaceOrderInput{
		UserID:         userID,
		BranchID:       req.BranchID,
		PromotionID:    req.PromotionID,
		Address:        req.Address,
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		Lines:          lines,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		fail(c, "Order creation failed", err, map[string]interface{}{
			"user_id":   userID,
			"branch_id": req.BranchID,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "주문이 접수되었습니다",
		"order":   order,
	})
}

// Checkout places an order from the caller's cart and empties it
// POST /api/v1/orders/checkout
func (ctrl *OrderController) Checkout(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := ctrl.orderService.PlaceOrderFromCart(c.Request.Context(), service.CartCheckoutInput{
		UserID:         userID,
		BranchID:       req.BranchID,
		PromotionID:    req.PromotionID,
		Address:        req.Address,
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	})
	if err != nil {
		fail(c, "Checkout failed", err, map[string]interface{}{
			"user_id":   userID,
			"branch_id": req.BranchID,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "주문이 접수되었습니다",
		"order":   order,
	})
}

// GetOrders lists the caller's orders, newest first
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	orders, err := ctrl.orderService.ListUserOrders(c.Request.Context(), userID)
	if err != nil {
		fail(c, "Failed to fetch orders", err, map[string]interface{}{"user_id": userID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrderByID returns one of the caller's orders
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrderByID(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orderID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		fail(c, "Failed to fetch order", err, map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder cancels one of the caller's orders and restores stock and promotion
// POST /api/v1/orders/:id/cancel
func (ctrl *OrderController) CancelOrder(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orderID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := ctrl.orderService.GetOrder(ctx, userID, orderID); err != nil {
		fail(c, "Order cancellation rejected", err, map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		return
	}

	order, err := ctrl.orderService.CancelOrder(ctx, orderID)
	if err != nil {
		fail(c, "Order cancellation failed", err, map[string]interface{}{
			"user_id":  userID,
			"order_id": orderID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "주문이 취소되었습니다",
		"order":   order,
	})
}

// UpdateOrderStatus moves an order along its lifecycle (admin only)
// PUT /api/v1/orders/:id/status
func (ctrl *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	status := model.OrderStatus(req.Status)
	if !status.Valid() {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "잘못된 주문 상태입니다")
		return
	}

	order, err := ctrl.orderService.UpdateStatus(c.Request.Context(), orderID, status)
	if err != nil {
		fail(c, "Failed to update order status", err, map[string]interface{}{
			"order_id": orderID,
			"status":   status,
		})
		return
	}

	middleware.GetLoggerFromContext(c).Info("Order status changed by admin", map[string]interface{}{
		"order_id": orderID,
		"status":   order.Status,
	})
	c.JSON(http.StatusOK, gin.H{"order": order})
}
