package repository

import (
	"context"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository interface {
	// Create inserts the order and its details in one call.
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	LockByID(ctx context.Context, id uint) (*model.Order, error)
	FindByUserID(ctx context.Context, userID uint) ([]model.Order, error)
	FindStale(ctx context.Context, status model.OrderStatus, before time.Time, limit int) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uint, status model.OrderStatus, cancelledAt *time.Time) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_no": order.OrderNo,
		"user_id":  order.UserID,
		"details":  len(order.OrderDetails),
	})

	if err := conn(ctx, r.db).Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_no": order.OrderNo,
			"user_id":  order.UserID,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id": order.ID,
	})
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).
		Preload("OrderDetails", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("OrderDetails.ProductType").
		First(&order, id).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
				"order_id": id,
			})
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) LockByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, id).Error
	if err != nil {
		return nil, err
	}

	var details []model.OrderDetail
	if err := conn(ctx, r.db).Where("order_id = ?", id).Order("id ASC").Find(&details).Error; err != nil {
		return nil, err
	}
	order.OrderDetails = details
	return &order, nil
}

func (r *orderRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Order, error) {
	var orders []model.Order
	err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Preload("OrderDetails").
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) FindStale(ctx context.Context, status model.OrderStatus, before time.Time, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := conn(ctx, r.db).
		Where("status = ? AND created_at < ?", status, before).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		logger.Error("Failed to find stale orders", err, map[string]interface{}{
			"status": status,
		})
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uint, status model.OrderStatus, cancelledAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if cancelledAt != nil {
		updates["cancelled_at"] = cancelledAt
	}

	err := conn(ctx, r.db).Model(&model.Order{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		logger.Error("Failed to update order status", err, map[string]interface{}{
			"order_id": id,
			"status":   status,
		})
	}
	return err
}
