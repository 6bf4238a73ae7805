package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type AddCartLineRequest struct {
	ProductTypeID uint   `json:"product_type_id" binding:"required"`
	Quantity      int    `json:"quantity" binding:"required,gt=0"`
	VariantCode   string `json:"variant_code" binding:"max=64"`
}

type UpdateCartLineRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// GetCart returns the caller's cart lines with a pre-VAT subtotal
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	cart, err := ctrl.cartService.GetOrCreateCart(ctx, userID)
	if err != nil {
		fail(c, "Failed to load cart", err, map[string]interface{}{"user_id": userID})
		return
	}
	lines, err := ctrl.cartService.GetLines(ctx, cart, userID)
	if err != nil {
		fail(c, "Failed to fetch cart lines", err, map[string]interface{}{"user_id": userID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart_id":  cart.ID,
		"lines":    lines,
		"count":    len(lines),
		"subtotal": subtotal(lines),
	})
}

func subtotal(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.ProductType.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// AddLine adds a product type to the cart, merging with an identical line
// POST /api/v1/cart/lines
func (ctrl *CartController) AddLine(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req AddCartLineRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	cart, err := ctrl.cartService.GetOrCreateCart(ctx, userID)
	if err != nil {
		fail(c, "Failed to load cart", err, map[string]interface{}{"user_id": userID})
		return
	}
	line, err := ctrl.cartService.AddLine(ctx, cart, req.ProductTypeID, req.Quantity, req.VariantCode)
	if err != nil {
		fail(c, "Failed to add cart line", err, map[string]interface{}{
			"user_id":         userID,
			"product_type_id": req.ProductTypeID,
		})
		return
	}

	middleware.GetLoggerFromContext(c).Info("Cart line saved", map[string]interface{}{
		"cart_line_id": line.ID,
		"quantity":     line.Quantity,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message": "장바구니에 추가되었습니다",
		"line":    line,
	})
}

// UpdateLine sets a line's quantity
// PUT /api/v1/cart/lines/:id
func (ctrl *CartController) UpdateLine(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	lineID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateCartLineRequest
	if !bindJSON(c, &req) {
		return
	}

	line, err := ctrl.cartService.UpdateQuantity(c.Request.Context(), userID, lineID, req.Quantity)
	if err != nil {
		fail(c, "Failed to update cart line", err, map[string]interface{}{
			"user_id":      userID,
			"cart_line_id": lineID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "수량이 변경되었습니다",
		"line":    line,
	})
}

// RemoveLine deletes one line
// DELETE /api/v1/cart/lines/:id
func (ctrl *CartController) RemoveLine(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	lineID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.cartService.RemoveLine(c.Request.Context(), userID, lineID); err != nil {
		fail(c, "Failed to remove cart line", err, map[string]interface{}{
			"user_id":      userID,
			"cart_line_id": lineID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "장바구니에서 삭제되었습니다"})
}

// ClearCart empties the caller's cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := ctrl.cartService.ClearCart(c.Request.Context(), userID); err != nil {
		fail(c, "Failed to clear cart", err, map[string]interface{}{"user_id": userID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "장바구니를 비웠습니다"})
}
