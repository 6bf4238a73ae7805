package repository

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PromotionRepository interface {
	Create(ctx context.Context, promotion *model.Promotion) error
	FindByID(ctx context.Context, id uint) (*model.Promotion, error)
	LockByID(ctx context.Context, id uint) (*model.Promotion, error)
	// Decrement takes one unit if any remain; zero rows affected means exhausted or missing.
	Decrement(ctx context.Context, id uint) (int64, error)
	Increment(ctx context.Context, id uint) (int64, error)

	FindRedemption(ctx context.Context, userID, promotionID uint) (*model.UserPromotion, error)
	FindRedemptionByOrder(ctx context.Context, orderID uint) (*model.UserPromotion, error)
	CreateRedemption(ctx context.Context, redemption *model.UserPromotion) error
	UpdateRedemption(ctx context.Context, id uint, status model.RedemptionStatus, orderID *uint) error
	ListRedemptionsByUser(ctx context.Context, userID uint) ([]model.UserPromotion, error)
}

type promotionRepository struct {
	db *gorm.DB
}

func NewPromotionRepository(db *gorm.DB) PromotionRepository {
	return &promotionRepository{db: db}
}

func (r *promotionRepository) Create(ctx context.Context, promotion *model.Promotion) error {
	if err := conn(ctx, r.db).Create(promotion).Error; err != nil {
		logger.Error("Failed to create promotion in database", err, map[string]interface{}{
			"name": promotion.Name,
		})
		return err
	}
	return nil
}

func (r *promotionRepository) FindByID(ctx context.Context, id uint) (*model.Promotion, error) {
	var promotion model.Promotion
	if err := conn(ctx, r.db).First(&promotion, id).Error; err != nil {
		return nil, err
	}
	return &promotion, nil
}

func (r *promotionRepository) LockByID(ctx context.Context, id uint) (*model.Promotion, error) {
	var promotion model.Promotion
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&promotion, id).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to lock promotion", err, map[string]interface{}{
				"promotion_id": id,
			})
		}
		return nil, err
	}
	return &promotion, nil
}

func (r *promotionRepository) Decrement(ctx context.Context, id uint) (int64, error) {
	result := conn(ctx, r.db).Model(&model.Promotion{}).
		Where("id = ? AND remaining_quantity > 0", id).
		Update("remaining_quantity", gorm.Expr("remaining_quantity - 1"))
	if result.Error != nil {
		logger.Error("Failed to decrement promotion quantity", result.Error, map[string]interface{}{
			"promotion_id": id,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *promotionRepository) Increment(ctx context.Context, id uint) (int64, error) {
	result := conn(ctx, r.db).Model(&model.Promotion{}).
		Where("id = ?", id).
		Update("remaining_quantity", gorm.Expr("remaining_quantity + 1"))
	if result.Error != nil {
		logger.Error("Failed to increment promotion quantity", result.Error, map[string]interface{}{
			"promotion_id": id,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *promotionRepository) FindRedemption(ctx context.Context, userID, promotionID uint) (*model.UserPromotion, error) {
	var redemption model.UserPromotion
	err := conn(ctx, r.db).
		Where("user_id = ? AND promotion_id = ?", userID, promotionID).
		First(&redemption).Error
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *promotionRepository) FindRedemptionByOrder(ctx context.Context, orderID uint) (*model.UserPromotion, error) {
	var redemption model.UserPromotion
	if err := conn(ctx, r.db).Where("order_id = ?", orderID).First(&redemption).Error; err != nil {
		return nil, err
	}
	return &redemption, nil
}

func (r *promotionRepository) CreateRedemption(ctx context.Context, redemption *model.UserPromotion) error {
	if err := conn(ctx, r.db).Create(redemption).Error; err != nil {
		logger.Debug("Redemption insert rejected", map[string]interface{}{
			"user_id":      redemption.UserID,
			"promotion_id": redemption.PromotionID,
			"error":        err.Error(),
		})
		return err
	}
	return nil
}

func (r *promotionRepository) UpdateRedemption(ctx context.Context, id uint, status model.RedemptionStatus, orderID *uint) error {
	err := conn(ctx, r.db).Model(&model.UserPromotion{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   status,
			"order_id": orderID,
		}).Error
	if err != nil {
		logger.Error("Failed to update redemption", err, map[string]interface{}{
			"redemption_id": id,
			"status":        status,
		})
	}
	return err
}

func (r *promotionRepository) ListRedemptionsByUser(ctx context.Context, userID uint) ([]model.UserPromotion, error) {
	var redemptions []model.UserPromotion
	err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Preload("Promotion").
		Order("id ASC").
		Find(&redemptions).Error
	if err != nil {
		logger.Error("Failed to list redemptions", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return redemptions, nil
}
