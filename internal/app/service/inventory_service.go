package service

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/metrics"
	rediscache "github.com/ikkim/storefront-backend/pkg/redis"
)

// Adjustment is one ledger write against a (product type, branch) record.
type Adjustment struct {
	ProductTypeID uint
	BranchID      uint
	Delta         int
	ChangeType    model.MovementType
	OrderID       *uint
	Remark        string
}

// InventorySnapshotCache is the read-through cache behind FindByKey.
type InventorySnapshotCache interface {
	Get(ctx context.Context, productTypeID, branchID uint) (*rediscache.StockSnapshot, error)
	Set(ctx context.Context, snap rediscache.StockSnapshot) error
	Invalidate(ctx context.Context, productTypeID, branchID uint)
}

// InventoryService is the inventory ledger. Every quantity change goes through
// Adjust, which applies the delta in a single conditional UPDATE and records a
// movement in the same transaction.
type InventoryService interface {
	Reserve(ctx context.Context, productTypeID, branchID uint, delta int) (*model.InventoryRecord, error)
	Adjust(ctx context.Context, adj Adjustment) (*model.InventoryRecord, error)
	LockForOrder(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error)
	FindByKey(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error)
	ListByBranch(ctx context.Context, branchID uint) ([]model.InventoryRecord, error)
	Stock(ctx context.Context, productTypeID, branchID uint, quantity int) (*model.InventoryRecord, error)
	Movements(ctx context.Context, recordID uint) ([]model.InventoryMovement, error)
}

type inventoryService struct {
	repo     repository.InventoryRepository
	tx       repository.TxManager
	variants VariantLookup
	branches BranchLookup
	cache    InventorySnapshotCache
}

// NewInventoryService wires the ledger. cache may be nil.
func NewInventoryService(
	repo repository.InventoryRepository,
	tx repository.TxManager,
	variants VariantLookup,
	branches BranchLookup,
	cache InventorySnapshotCache,
) InventoryService {
	return &inventoryService{
		repo:     repo,
		tx:       tx,
		variants: variants,
		branches: branches,
		cache:    cache,
	}
}

func (s *inventoryService) Reserve(ctx context.Context, productTypeID, branchID uint, delta int) (*model.InventoryRecord, error) {
	changeType := model.MovementRestock
	if delta < 0 {
		changeType = model.MovementDeduct
	}
	return s.Adjust(ctx, Adjustment{
		ProductTypeID: productTypeID,
		BranchID:      branchID,
		Delta:         delta,
		ChangeType:    changeType,
	})
}

func (s *inventoryService) Adjust(ctx context.Context, adj Adjustment) (*model.InventoryRecord, error) {
	if adj.ProductTypeID == 0 || adj.BranchID == 0 {
		return nil, apperrors.ErrInvalidID
	}
	if adj.Delta == 0 {
		return nil, apperrors.ErrValidation.WithMessage("변경 수량은 0일 수 없습니다")
	}
	if adj.ChangeType == "" {
		adj.ChangeType = model.MovementAdjust
	}

	log := logger.FromContext(ctx)

	var record *model.InventoryRecord
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		rows, err := s.repo.ApplyDelta(ctx, adj.ProductTypeID, adj.BranchID, adj.Delta)
		if err != nil {
			return apperrors.Wrap(err, "failed to adjust inventory")
		}

		current, err := s.repo.FindByKey(ctx, adj.ProductTypeID, adj.BranchID)
		if apperrors.IsRecordNotFound(err) {
			return apperrors.ErrInventoryNotFound.WithMessage(
				"지점(%d)에 상품 옵션(%d) 재고가 없습니다", adj.BranchID, adj.ProductTypeID)
		}
		if err != nil {
			return apperrors.Wrap(err, "failed to read inventory")
		}
		if rows == 0 {
			return apperrors.ErrInsufficientStock.WithMessage(
				"재고가 부족합니다 (보유 %d, 요청 %d)", current.Quantity, -adj.Delta)
		}

		if err := s.repo.CreateMovement(ctx, &model.InventoryMovement{
			InventoryRecordID: current.ID,
			OrderID:           adj.OrderID,
			ChangeType:        adj.ChangeType,
			Delta:             adj.Delta,
			BeforeQuantity:    current.Quantity - adj.Delta,
			AfterQuantity:     current.Quantity,
			Remark:            adj.Remark,
		}); err != nil {
			return apperrors.Wrap(err, "failed to record inventory movement")
		}

		record = current
		return nil
	})

	if err != nil {
		metrics.InventoryAdjustmentsTotal.WithLabelValues(string(adj.ChangeType), metrics.ResultFailure).Inc()
		log.Warn("Inventory adjustment rejected", map[string]interface{}{
			"product_type_id": adj.ProductTypeID,
			"branch_id":       adj.BranchID,
			"delta":           adj.Delta,
			"change_type":     adj.ChangeType,
			"error":           err.Error(),
		})
		return nil, err
	}

	metrics.InventoryAdjustmentsTotal.WithLabelValues(string(adj.ChangeType), metrics.ResultSuccess).Inc()
	if s.cache != nil {
		// A snapshot dropped before commit could be refilled with the old row.
		cacheCtx := context.WithoutCancel(ctx)
		repository.AfterCommit(ctx, func() {
			s.cache.Invalidate(cacheCtx, adj.ProductTypeID, adj.BranchID)
		})
	}

	log.Debug("Inventory adjusted", map[string]interface{}{
		"inventory_record_id": record.ID,
		"delta":               adj.Delta,
		"quantity":            record.Quantity,
		"change_type":         adj.ChangeType,
	})
	return record, nil
}

func (s *inventoryService) LockForOrder(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error) {
	record, err := s.repo.LockByKey(ctx, productTypeID, branchID)
	if apperrors.IsRecordNotFound(err) {
		return nil, apperrors.ErrInventoryNotFound.WithMessage(
			"지점(%d)에 상품 옵션(%d) 재고가 없습니다", branchID, productTypeID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to lock inventory")
	}
	return record, nil
}

func (s *inventoryService) FindByKey(ctx context.Context, productTypeID, branchID uint) (*model.InventoryRecord, error) {
	if s.cache != nil {
		snap, err := s.cache.Get(ctx, productTypeID, branchID)
		switch {
		case err != nil:
			metrics.InventoryCacheLookups.WithLabelValues("error").Inc()
			logger.FromContext(ctx).Warn("Inventory cache read failed", map[string]interface{}{
				"product_type_id": productTypeID,
				"branch_id":       branchID,
				"error":           err.Error(),
			})
		case snap != nil:
			metrics.InventoryCacheLookups.WithLabelValues("hit").Inc()
			return &model.InventoryRecord{
				ID:            snap.RecordID,
				ProductTypeID: snap.ProductTypeID,
				BranchID:      snap.BranchID,
				Quantity:      snap.Quantity,
				UpdatedAt:     snap.UpdatedAt,
			}, nil
		default:
			metrics.InventoryCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	record, err := s.repo.FindByKey(ctx, productTypeID, branchID)
	if apperrors.IsRecordNotFound(err) {
		return nil, apperrors.ErrInventoryNotFound.WithMessage(
			"지점(%d)에 상품 옵션(%d) 재고가 없습니다", branchID, productTypeID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find inventory")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rediscache.StockSnapshot{
			RecordID:      record.ID,
			ProductTypeID: record.ProductTypeID,
			BranchID:      record.BranchID,
			Quantity:      record.Quantity,
			UpdatedAt:     record.UpdatedAt,
		}); err != nil {
			logger.FromContext(ctx).Warn("Inventory cache write failed", map[string]interface{}{
				"inventory_record_id": record.ID,
				"error":               err.Error(),
			})
		}
	}
	return record, nil
}

func (s *inventoryService) ListByBranch(ctx context.Context, branchID uint) ([]model.InventoryRecord, error) {
	if _, err := s.branches.FindBranchByID(ctx, branchID); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list inventory")
	}
	return records, nil
}

// Stock registers a product type at a branch for the first time.
func (s *inventoryService) Stock(ctx context.Context, productTypeID, branchID uint, quantity int) (*model.InventoryRecord, error) {
	if productTypeID == 0 || branchID == 0 {
		return nil, apperrors.ErrInvalidID
	}
	if quantity < 0 {
		return nil, apperrors.ErrInvalidQuantity.WithMessage("초기 재고는 0 이상이어야 합니다")
	}
	if _, err := s.variants.FindVariantByID(ctx, productTypeID); err != nil {
		return nil, err
	}
	if _, err := s.branches.FindBranchByID(ctx, branchID); err != nil {
		return nil, err
	}

	record := &model.InventoryRecord{
		ProductTypeID: productTypeID,
		BranchID:      branchID,
		Quantity:      quantity,
	}
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, record); err != nil {
			if apperrors.IsDuplicateKey(err) {
				return apperrors.ErrAlreadyStocked
			}
			return apperrors.Wrap(err, "failed to stock inventory")
		}
		return s.repo.CreateMovement(ctx, &model.InventoryMovement{
			InventoryRecordID: record.ID,
			ChangeType:        model.MovementStock,
			Delta:             quantity,
			BeforeQuantity:    0,
			AfterQuantity:     quantity,
		})
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to stock inventory")
	}

	logger.FromContext(ctx).Info("New SKU stocked at branch", map[string]interface{}{
		"inventory_record_id": record.ID,
		"product_type_id":     productTypeID,
		"branch_id":           branchID,
		"quantity":            quantity,
	})
	return record, nil
}

func (s *inventoryService) Movements(ctx context.Context, recordID uint) ([]model.InventoryMovement, error) {
	if _, err := s.repo.FindByID(ctx, recordID); err != nil {
		if apperrors.IsRecordNotFound(err) {
			return nil, apperrors.ErrInventoryNotFound
		}
		return nil, apperrors.Wrap(err, "failed to find inventory")
	}
	movements, err := s.repo.ListMovements(ctx, recordID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list inventory movements")
	}
	return movements, nil
}
