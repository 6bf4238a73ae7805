package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/service"
)

type PromotionController struct {
	promotionService service.PromotionService
}

func NewPromotionController(promotionService service.PromotionService) *PromotionController {
	return &PromotionController{promotionService: promotionService}
}

// GetPromotion GET /api/v1/promotions/:id
func (ctrl *PromotionController) GetPromotion(c *gin.Context) {
	promotionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	promo, err := ctrl.promotionService.Get(c.Request.Context(), promotionID)
	if err != nil {
		fail(c, "Failed to fetch promotion", err, map[string]interface{}{"promotion_id": promotionID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"promotion": promo})
}

// Claim reserves one unit of the promotion for the caller
// POST /api/v1/promotions/:id/claim
func (ctrl *PromotionController) Claim(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	promotionID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	redemption, err := ctrl.promotionService.Claim(c.Request.Context(), promotionID, userID)
	if err != nil {
		fail(c, "Promotion claim failed", err, map[string]interface{}{
			"user_id":      userID,
			"promotion_id": promotionID,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":    "프로모션이 발급되었습니다",
		"redemption": redemption,
	})
}

// ListMine GET /api/v1/promotions/mine
func (ctrl *PromotionController) ListMine(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	redemptions, err := ctrl.promotionService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, "Failed to list promotions", err, map[string]interface{}{"user_id": userID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"redemptions": redemptions,
		"count":       len(redemptions),
	})
}
