package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// StockSnapshot is a point-in-time copy of an inventory record. It is served
// to read accessors only; reservations always go to the database.
type StockSnapshot struct {
	RecordID      uint      `json:"record_id"`
	ProductTypeID uint      `json:"product_type_id"`
	BranchID      uint      `json:"branch_id"`
	Quantity      int       `json:"quantity"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type InventoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewInventoryCache(client *redis.Client, ttl time.Duration) *InventoryCache {
	return &InventoryCache{client: client, ttl: ttl}
}

func inventoryKey(productTypeID, branchID uint) string {
	return fmt.Sprintf("inventory:%d:%d", productTypeID, branchID)
}

// Get returns (nil, nil) on a cache miss.
func (c *InventoryCache) Get(ctx context.Context, productTypeID, branchID uint) (*StockSnapshot, error) {
	raw, err := c.client.Get(ctx, inventoryKey(productTypeID, branchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap StockSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *InventoryCache) Set(ctx context.Context, snap StockSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, inventoryKey(snap.ProductTypeID, snap.BranchID), raw, c.ttl).Err()
}

// Invalidate drops the snapshot after a ledger write.
func (c *InventoryCache) Invalidate(ctx context.Context, productTypeID, branchID uint) {
	if err := c.client.Del(ctx, inventoryKey(productTypeID, branchID)).Err(); err != nil {
		logger.Warn("Failed to invalidate inventory cache", map[string]interface{}{
			"product_type_id": productTypeID,
			"branch_id":       branchID,
			"error":           err.Error(),
		})
	}
}
