package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/service"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
)

type InventoryController struct {
	inventoryService service.InventoryService
}

func NewInventoryController(inventoryService service.InventoryService) *InventoryController {
	return &InventoryController{inventoryService: inventoryService}
}

type StockRequest struct {
	ProductTypeID uint `json:"product_type_id" binding:"required"`
	BranchID      uint `json:"branch_id" binding:"required"`
	Quantity      int  `json:"quantity" binding:"gte=0"`
}

type AdjustRequest struct {
	ProductTypeID uint   `json:"product_type_id" binding:"required"`
	BranchID      uint   `json:"branch_id" binding:"required"`
	Delta         int    `json:"delta"`
	Remark        string `json:"remark" binding:"max=255"`
}

// ListByBranch GET /api/v1/inventory/branches/:branch_id
func (ctrl *InventoryController) ListByBranch(c *gin.Context) {
	branchID, ok := uintParam(c, "branch_id")
	if !ok {
		return
	}

	records, err := ctrl.inventoryService.ListByBranch(c.Request.Context(), branchID)
	if err != nil {
		fail(c, "Failed to list inventory", err, map[string]interface{}{"branch_id": branchID})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inventory": records,
		"count":     len(records),
	})
}

// GetRecord GET /api/v1/inventory/branches/:branch_id/product-types/:product_type_id
func (ctrl *InventoryController) GetRecord(c *gin.Context) {
	branchID, ok := uintParam(c, "branch_id")
	if !ok {
		return
	}
	productTypeID, ok := uintParam(c, "product_type_id")
	if !ok {
		return
	}

	record, err := ctrl.inventoryService.FindByKey(c.Request.Context(), productTypeID, branchID)
	if err != nil {
		fail(c, "Failed to fetch inventory", err, map[string]interface{}{
			"branch_id":       branchID,
			"product_type_id": productTypeID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"inventory": record})
}

// Stock registers a product type at a branch (admin only)
// POST /api/v1/inventory
func (ctrl *InventoryController) Stock(c *gin.Context) {
	var req StockRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := ctrl.inventoryService.Stock(c.Request.Context(), req.ProductTypeID, req.BranchID, req.Quantity)
	if err != nil {
		fail(c, "Failed to stock inventory", err, map[string]interface{}{
			"branch_id":       req.BranchID,
			"product_type_id": req.ProductTypeID,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"inventory": record})
}

// Adjust applies a manual correction (admin only)
// POST /api/v1/inventory/adjust
func (ctrl *InventoryController) Adjust(c *gin.Context) {
	var req AdjustRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Delta == 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidQuantity, "변경 수량은 0일 수 없습니다")
		return
	}

	record, err := ctrl.inventoryService.Adjust(c.Request.Context(), service.Adjustment{
		ProductTypeID: req.ProductTypeID,
		BranchID:      req.BranchID,
		Delta:         req.Delta,
		ChangeType:    model.MovementAdjust,
		Remark:        req.Remark,
	})
	if err != nil {
		fail(c, "Inventory adjustment failed", err, map[string]interface{}{
			"branch_id":       req.BranchID,
			"product_type_id": req.ProductTypeID,
			"delta":           req.Delta,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"inventory": record})
}
