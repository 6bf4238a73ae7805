package repository

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindProductTypeByID(ctx context.Context, id uint) (*model.ProductType, error)
	FindProductTypeByCode(ctx context.Context, code string) (*model.ProductType, error)
	FindProductTypesByIDs(ctx context.Context, ids []uint) (map[uint]model.ProductType, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts the product together with its product types.
func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":          product.Name,
		"product_types": len(product.ProductTypes),
	})

	if err := conn(ctx, r.db).Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}
	return nil
}

func (r *productRepository) FindProductTypeByID(ctx context.Context, id uint) (*model.ProductType, error) {
	var pt model.ProductType
	if err := conn(ctx, r.db).First(&pt, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find product type by ID in database", err, map[string]interface{}{
				"product_type_id": id,
			})
		}
		return nil, err
	}
	return &pt, nil
}

func (r *productRepository) FindProductTypeByCode(ctx context.Context, code string) (*model.ProductType, error) {
	var pt model.ProductType
	if err := conn(ctx, r.db).Where("code = ?", code).First(&pt).Error; err != nil {
		return nil, err
	}
	return &pt, nil
}

func (r *productRepository) FindProductTypesByIDs(ctx context.Context, ids []uint) (map[uint]model.ProductType, error) {
	var types []model.ProductType
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&types).Error; err != nil {
		logger.Error("Failed to find product types in database", err, map[string]interface{}{
			"count": len(ids),
		})
		return nil, err
	}

	result := make(map[uint]model.ProductType, len(types))
	for _, pt := range types {
		result[pt.ID] = pt
	}
	return result, nil
}
