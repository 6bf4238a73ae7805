package service

import (
	"context"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
)

// UserLookup resolves order owners. Missing users are ErrUserNotFound.
type UserLookup interface {
	FindUserByID(ctx context.Context, id uint) (*model.User, error)
}

// BranchLookup resolves fulfilment branches. Missing branches are ErrBranchNotFound.
type BranchLookup interface {
	FindBranchByID(ctx context.Context, id uint) (*model.Branch, error)
}

// VariantLookup resolves sellable product types. Missing ones are ErrProductTypeNotFound.
type VariantLookup interface {
	FindVariantByID(ctx context.Context, id uint) (*model.ProductType, error)
}

// CatalogLookup implements the lookup interfaces on top of the repositories.
type CatalogLookup struct {
	users    repository.UserRepository
	branches repository.BranchRepository
	products repository.ProductRepository
}

func NewCatalogLookup(
	users repository.UserRepository,
	branches repository.BranchRepository,
	products repository.ProductRepository,
) *CatalogLookup {
	return &CatalogLookup{users: users, branches: branches, products: products}
}

func (l *CatalogLookup) FindUserByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := l.users.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apperrors.ErrUserNotFound.WithMessage("사용자(%d)를 찾을 수 없습니다", id))
	}
	return user, nil
}

func (l *CatalogLookup) FindBranchByID(ctx context.Context, id uint) (*model.Branch, error) {
	branch, err := l.branches.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apperrors.ErrBranchNotFound.WithMessage("지점(%d)을 찾을 수 없습니다", id))
	}
	return branch, nil
}

func (l *CatalogLookup) FindVariantByID(ctx context.Context, id uint) (*model.ProductType, error) {
	pt, err := l.products.FindProductTypeByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, apperrors.ErrProductTypeNotFound.WithMessage("상품 옵션(%d)을 찾을 수 없습니다", id))
	}
	return pt, nil
}

func lookupError(err error, notFound *apperrors.AppError) error {
	if apperrors.IsRecordNotFound(err) {
		return notFound
	}
	return apperrors.Wrap(err, "lookup failed")
}
