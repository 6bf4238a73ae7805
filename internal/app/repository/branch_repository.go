package repository

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

type BranchRepository interface {
	Create(ctx context.Context, branch *model.Branch) error
	FindByID(ctx context.Context, id uint) (*model.Branch, error)
	FindByCode(ctx context.Context, code string) (*model.Branch, error)
}

type branchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) BranchRepository {
	return &branchRepository{db: db}
}

func (r *branchRepository) Create(ctx context.Context, branch *model.Branch) error {
	if err := conn(ctx, r.db).Create(branch).Error; err != nil {
		logger.Error("Failed to create branch in database", err, map[string]interface{}{
			"code": branch.Code,
		})
		return err
	}
	return nil
}

func (r *branchRepository) FindByID(ctx context.Context, id uint) (*model.Branch, error) {
	var branch model.Branch
	if err := conn(ctx, r.db).First(&branch, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Error("Failed to find branch by ID in database", err, map[string]interface{}{
				"branch_id": id,
			})
		}
		return nil, err
	}
	return &branch, nil
}

func (r *branchRepository) FindByCode(ctx context.Context, code string) (*model.Branch, error) {
	var branch model.Branch
	if err := conn(ctx, r.db).Where("code = ?", code).First(&branch).Error; err != nil {
		return nil, err
	}
	return &branch, nil
}
