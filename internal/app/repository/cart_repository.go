package repository

import (
	"context"
	"sort"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type CartRepository interface {
	Create(ctx context.Context, cart *model.Cart) error
	FindByID(ctx context.Context, id uint) (*model.Cart, error)
	FindByUserID(ctx context.Context, userID uint) (*model.Cart, error)

	CreateLine(ctx context.Context, line *model.CartLine) error
	FindLineByID(ctx context.Context, id uint) (*model.CartLine, error)
	FindLine(ctx context.Context, cartID, productTypeID uint, variantCode string) (*model.CartLine, error)
	FindLines(ctx context.Context, cartID uint) ([]model.CartLine, error)
	// IncrementLine adds delta to an existing line in one statement and reports
	// how many rows matched.
	IncrementLine(ctx context.Context, cartID, productTypeID uint, variantCode string, delta int) (int64, error)
	UpdateLineQuantity(ctx context.Context, id uint, quantity int) error
	DeleteLine(ctx context.Context, id uint) (int64, error)
	DeleteLines(ctx context.Context, cartID uint) error
	// ConsumeLines subtracts the ordered quantity from each listed line and
	// removes the lines that reach zero. Lines added or merged after the
	// quantities were read keep the difference.
	ConsumeLines(ctx context.Context, cartID uint, ordered map[uint]int) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) Create(ctx context.Context, cart *model.Cart) error {
	logger.Debug("Creating cart in database", map[string]interface{}{
		"user_id": cart.UserID,
	})

	if err := conn(ctx, r.db).Create(cart).Error; err != nil {
		logger.Error("Failed to create cart in database", err, map[string]interface{}{
			"user_id": cart.UserID,
		})
		return err
	}
	return nil
}

func (r *cartRepository) FindByID(ctx context.Context, id uint) (*model.Cart, error) {
	var cart model.Cart
	if err := conn(ctx, r.db).First(&cart, id).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindByUserID(ctx context.Context, userID uint) (*model.Cart, error) {
	var cart model.Cart
	if err := conn(ctx, r.db).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) CreateLine(ctx context.Context, line *model.CartLine) error {
	logger.Debug("Creating cart line in database", map[string]interface{}{
		"cart_id":         line.CartID,
		"product_type_id": line.ProductTypeID,
		"quantity":        line.Quantity,
	})

	if err := conn(ctx, r.db).Create(line).Error; err != nil {
		// duplicate keys are resolved by the caller's merge retry
		logger.Debug("Cart line insert rejected", map[string]interface{}{
			"cart_id":         line.CartID,
			"product_type_id": line.ProductTypeID,
			"error":           err.Error(),
		})
		return err
	}
	return nil
}

func (r *cartRepository) FindLineByID(ctx context.Context, id uint) (*model.CartLine, error) {
	var line model.CartLine
	if err := conn(ctx, r.db).First(&line, id).Error; err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepository) FindLine(ctx context.Context, cartID, productTypeID uint, variantCode string) (*model.CartLine, error) {
	var line model.CartLine
	err := conn(ctx, r.db).
		Where("cart_id = ? AND product_type_id = ? AND variant_code = ?", cartID, productTypeID, variantCode).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepository) FindLines(ctx context.Context, cartID uint) ([]model.CartLine, error) {
	logger.Debug("Finding cart lines in database", map[string]interface{}{
		"cart_id": cartID,
	})

	var lines []model.CartLine
	err := conn(ctx, r.db).
		Where("cart_id = ?", cartID).
		Preload("ProductType").
		Order("id ASC").
		Find(&lines).Error
	if err != nil {
		logger.Error("Failed to find cart lines in database", err, map[string]interface{}{
			"cart_id": cartID,
		})
		return nil, err
	}
	return lines, nil
}

func (r *cartRepository) IncrementLine(ctx context.Context, cartID, productTypeID uint, variantCode string, delta int) (int64, error) {
	result := conn(ctx, r.db).Model(&model.CartLine{}).
		Where("cart_id = ? AND product_type_id = ? AND variant_code = ?", cartID, productTypeID, variantCode).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if result.Error != nil {
		logger.Error("Failed to increment cart line in database", result.Error, map[string]interface{}{
			"cart_id":         cartID,
			"product_type_id": productTypeID,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *cartRepository) UpdateLineQuantity(ctx context.Context, id uint, quantity int) error {
	err := conn(ctx, r.db).Model(&model.CartLine{}).
		Where("id = ?", id).
		Update("quantity", quantity).Error
	if err != nil {
		logger.Error("Failed to update cart line quantity in database", err, map[string]interface{}{
			"cart_line_id": id,
		})
	}
	return err
}

func (r *cartRepository) DeleteLine(ctx context.Context, id uint) (int64, error) {
	result := conn(ctx, r.db).Delete(&model.CartLine{}, id)
	if result.Error != nil {
		logger.Error("Failed to delete cart line in database", result.Error, map[string]interface{}{
			"cart_line_id": id,
		})
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *cartRepository) DeleteLines(ctx context.Context, cartID uint) error {
	err := conn(ctx, r.db).Where("cart_id = ?", cartID).Delete(&model.CartLine{}).Error
	if err != nil {
		logger.Error("Failed to clear cart lines in database", err, map[string]interface{}{
			"cart_id": cartID,
		})
	}
	return err
}

func (r *cartRepository) ConsumeLines(ctx context.Context, cartID uint, ordered map[uint]int) error {
	if len(ordered) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(ordered))
	for id := range ordered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	db := conn(ctx, r.db)
	for _, id := range ids {
		err := db.Model(&model.CartLine{}).
			Where("id = ? AND cart_id = ?", id, cartID).
			Update("quantity", gorm.Expr("quantity - ?", ordered[id])).Error
		if err != nil {
			logger.Error("Failed to consume cart line in database", err, map[string]interface{}{
				"cart_id":      cartID,
				"cart_line_id": id,
			})
			return err
		}
	}

	err := db.Where("cart_id = ? AND id IN ? AND quantity <= 0", cartID, ids).Delete(&model.CartLine{}).Error
	if err != nil {
		logger.Error("Failed to remove consumed cart lines in database", err, map[string]interface{}{
			"cart_id": cartID,
		})
	}
	return err
}
