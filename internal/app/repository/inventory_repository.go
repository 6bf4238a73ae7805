package repository

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository interface {
	Create(ctx context.Context, record *model.InventoryRecord) error
	FindByID(ctx context.Context, id uint) (*model.InventoryRecord, error)
	FindByKey(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error)
	// LockByKey reads the record with SELECT ... FOR UPDATE; only meaningful inside a transaction.
	LockByKey(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error)
	ListByBranch(ctx context.Context, branchID uint) ([]model.InventoryRecord, error)
	// ApplyDelta adds delta to the quantity only if the result stays non-negative.
	// Zero rows affected means the record is missing or stock is insufficient.
	ApplyDelta(ctx context.Context, productTypeID, branchID uint, delta int) (int64, error)

	CreateMovement(ctx context.Context, movement *model.InventoryMovement) error
	ListMovements(ctx context.Context, recordID uint) ([]model.InventoryMovement, error)
}

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(ctx context.Context, record *model.InventoryRecord) error {
	logger.Debug("Creating inventory record in database", map[string]interface{}{
		"product_type_id": record.ProductTypeID,
		"branch_id":       record.BranchID,
		"quantity":        record.Quantity,
	})

	if err := conn(ctx, r.db).Create(record).Error; err != nil {
		logger.Error("Failed to create inventory record in database", err, map[string]interface{}{
			"product_type_id": record.ProductTypeID,
			"branch_id":       record.BranchID,
		})
		return err
	}
	return nil
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uint) (*model.InventoryRecord, error) {
	var record model.InventoryRecord
	if err := conn(ctx, r.db).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *inventoryRepository) FindByKey(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error) {
	var record model.InventoryRecord
	err := conn(ctx, r.db).
		Where("product_type_id = ? AND branch_id = ?", productTypeID, branchID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *inventoryRepository) LockByKey(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error) {
	logger.Debug("Locking inventory record", map[string]interface{}{
		"product_type_id": productTypeID,
		"branch_id":       branchID,
	})

	var record model.InventoryRecord
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_type_id = ? AND branch_id = ?", productTypeID, branchID).
		First(&record).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to lock inventory record", err, map[string]interface{}{
				"product_type_id": productTypeID,
				"branch_id":       branchID,
			})
		}
		return nil, err
	}
	return &record, nil
}

func (r *inventoryRepository) ListByBranch(ctx context.Context, branchID uint) ([]model.InventoryRecord, error) {
	var records []model.InventoryRecord
	err := conn(ctx, r.db).
		Where("branch_id = ?", branchID).
		Preload("ProductType").
		Order("product_type_id ASC").
		Find(&records).Error
	if err != nil {
		logger.Error("Failed to list inventory records in database", err, map[string]interface{}{
			"branch_id": branchID,
		})
		return nil, err
	}
	return records, nil
}

func (r *inventoryRepository) ApplyDelta(ctx context.Context, productTypeID, branchID uint, delta int) (int64, error) {
	result := conn(ctx, r.db).Model(&model.InventoryRecord{}).
		Where("product_type_id = ? AND branch_id = ? AND quantity + ? >= 0", productTypeID, branchID, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		logger.Error("Failed to apply inventory delta", result.Error, map[string]interface{}{
			"product_type_id": productTypeID,
			"branch_id":       branchID,
			"delta":           delta,
		})
		return 0, result.Error
	}

	logger.Debug("Inventory delta applied", map[string]interface{}{
		"product_type_id": productTypeID,
		"branch_id":       branchID,
		"delta":           delta,
		"rows_affected":   result.RowsAffected,
	})
	return result.RowsAffected, nil
}

func (r *inventoryRepository) CreateMovement(ctx context.Context, movement *model.InventoryMovement) error {
	if err := conn(ctx, r.db).Create(movement).Error; err != nil {
		logger.Error("Failed to record inventory movement", err, map[string]interface{}{
			"inventory_record_id": movement.InventoryRecordID,
			"change_type":         movement.ChangeType,
		})
		return err
	}
	return nil
}

func (r *inventoryRepository) ListMovements(ctx context.Context, recordID uint) ([]model.InventoryMovement, error) {
	var movements []model.InventoryMovement
	err := conn(ctx, r.db).
		Where("inventory_record_id = ?", recordID).
		Order("id ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
