package db

import (
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Models lists every table owned by this service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Branch{},
		&model.Product{},
		&model.ProductType{},
		&model.Cart{},
		&model.CartLine{},
		&model.InventoryRecord{},
		&model.InventoryMovement{},
		&model.Promotion{},
		&model.UserPromotion{},
		&model.Order{},
		&model.OrderDetail{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed adds demo reference data (branches, a product catalogue, a system promotion).
// Stock levels are loaded separately through cmd/seed.
func Seed() error {
	return seedInitialData(DB)
}

func seedInitialData(db *gorm.DB) error {
	logger.Info("Seeding initial data...")

	var count int64
	if err := db.Model(&model.Branch{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Reference data already seeded, skipping...", map[string]interface{}{
			"existing_branches": count,
		})
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		branches := []model.Branch{
			{Code: "SEOUL-01", Name: "강남점", Address: "서울특별시 강남구 테헤란로 1"},
			{Code: "BUSAN-01", Name: "서면점", Address: "부산광역시 부산진구 중앙대로 1"},
		}
		if err := tx.Create(&branches).Error; err != nil {
			logger.Error("Failed to seed branches", err)
			return err
		}

		products := []model.Product{
			{
				Name:     "기본 티셔츠",
				Category: "apparel",
				ProductTypes: []model.ProductType{
					{Code: "TS-WHT-M", Name: "화이트 M", Price: decimal.NewFromInt(19000), VATRate: decimal.NewFromInt(10)},
					{Code: "TS-BLK-M", Name: "블랙 M", Price: decimal.NewFromInt(19000), VATRate: decimal.NewFromInt(10)},
				},
			},
			{
				Name:     "텀블러",
				Category: "goods",
				ProductTypes: []model.ProductType{
					{Code: "TB-350", Name: "350ml", Price: decimal.NewFromInt(12500), VATRate: decimal.NewFromInt(10)},
				},
			},
		}
		if err := tx.Create(&products).Error; err != nil {
			logger.Error("Failed to seed products", err)
			return err
		}

		now := time.Now()
		promo := model.Promotion{
			Name:              "SYSTEM_WELCOME",
			Discount:          10,
			StartDate:         now.AddDate(0, 0, -1),
			EndDate:           now.AddDate(0, 3, 0),
			RemainingQuantity: 1000,
		}
		if err := tx.Create(&promo).Error; err != nil {
			logger.Error("Failed to seed promotion", err)
			return err
		}

		logger.Info("Initial data seeded successfully", map[string]interface{}{
			"branches": len(branches),
			"products": len(products),
		})
		return nil
	})
}
