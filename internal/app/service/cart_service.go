package service

import (
	"context"
	"errors"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
)

// mergeAttempts bounds the increment/insert race on a new cart line.
const mergeAttempts = 3

type CartService interface {
	GetOrCreateCart(ctx context.Context, userID uint) (*model.Cart, error)
	AddLine(ctx context.Context, cart *model.Cart, productTypeID uint, quantity int, variantCode string) (*model.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID uint, quantity int) (*model.CartLine, error)
	RemoveLine(ctx context.Context, userID, lineID uint) error
	GetLines(ctx context.Context, cart *model.Cart, requestingUserID uint) ([]model.CartLine, error)
	ClearCart(ctx context.Context, userID uint) error
}

type cartService struct {
	repo     repository.CartRepository
	users    UserLookup
	variants VariantLookup
}

func NewCartService(repo repository.CartRepository, users UserLookup, variants VariantLookup) CartService {
	return &cartService{repo: repo, users: users, variants: variants}
}

func (s *cartService) GetOrCreateCart(ctx context.Context, userID uint) (*model.Cart, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !apperrors.IsRecordNotFound(err) {
		return nil, apperrors.Wrap(err, "failed to find cart")
	}

	if _, err := s.users.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}

	cart = &model.Cart{UserID: userID}
	if err := s.repo.Create(ctx, cart); err != nil {
		if !apperrors.IsDuplicateKey(err) {
			return nil, apperrors.Wrap(err, "failed to create cart")
		}
		// created concurrently by another request
		if cart, err = s.repo.FindByUserID(ctx, userID); err != nil {
			return nil, apperrors.Wrap(err, "failed to find cart")
		}
		return cart, nil
	}

	logger.FromContext(ctx).Info("Cart created", map[string]interface{}{
		"user_id": userID,
		"cart_id": cart.ID,
	})
	return cart, nil
}

// AddLine merges into an existing (cart, product type, variant code) line with
// an atomic increment, and inserts a new line otherwise.
func (s *cartService) AddLine(ctx context.Context, cart *model.Cart, productTypeID uint, quantity int, variantCode string) (*model.CartLine, error) {
	if cart == nil || cart.ID == 0 {
		return nil, apperrors.ErrValidation.WithMessage("장바구니 정보가 필요합니다")
	}
	if productTypeID == 0 {
		return nil, apperrors.ErrInvalidID.WithMessage("상품 옵션 ID가 필요합니다")
	}
	if quantity <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}
	if _, err := s.variants.FindVariantByID(ctx, productTypeID); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)

	for attempt := 0; attempt < mergeAttempts; attempt++ {
		rows, err := s.repo.IncrementLine(ctx, cart.ID, productTypeID, variantCode, quantity)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to merge cart line")
		}
		if rows > 0 {
			line, err := s.repo.FindLine(ctx, cart.ID, productTypeID, variantCode)
			if err != nil {
				return nil, apperrors.Wrap(err, "failed to read cart line")
			}
			log.Info("Cart line merged", map[string]interface{}{
				"cart_id":      cart.ID,
				"cart_line_id": line.ID,
				"quantity":     line.Quantity,
			})
			return line, nil
		}

		line := &model.CartLine{
			CartID:        cart.ID,
			ProductTypeID: productTypeID,
			VariantCode:   variantCode,
			Quantity:      quantity,
		}
		err = s.repo.CreateLine(ctx, line)
		if err == nil {
			log.Info("Cart line added", map[string]interface{}{
				"cart_id":      cart.ID,
				"cart_line_id": line.ID,
				"quantity":     quantity,
			})
			return line, nil
		}
		if !apperrors.IsDuplicateKey(err) {
			return nil, apperrors.Wrap(err, "failed to add cart line")
		}
	}

	return nil, apperrors.Wrap(errors.New("cart line merge kept racing"), "failed to add cart line")
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, lineID uint, quantity int) (*model.CartLine, error) {
	if lineID == 0 {
		return nil, apperrors.ErrInvalidID
	}
	if quantity <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}

	line, err := s.ownedLine(ctx, userID, lineID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLineQuantity(ctx, line.ID, quantity); err != nil {
		return nil, apperrors.Wrap(err, "failed to update cart line")
	}
	line.Quantity = quantity

	logger.FromContext(ctx).Info("Cart line quantity updated", map[string]interface{}{
		"cart_line_id": lineID,
		"quantity":     quantity,
	})
	return line, nil
}

func (s *cartService) RemoveLine(ctx context.Context, userID, lineID uint) error {
	if lineID == 0 {
		return apperrors.ErrInvalidID
	}
	if _, err := s.ownedLine(ctx, userID, lineID); err != nil {
		return err
	}

	rows, err := s.repo.DeleteLine(ctx, lineID)
	if err != nil {
		return apperrors.Wrap(err, "failed to remove cart line")
	}
	if rows == 0 {
		return apperrors.ErrCartLineNotFound
	}
	return nil
}

func (s *cartService) GetLines(ctx context.Context, cart *model.Cart, requestingUserID uint) ([]model.CartLine, error) {
	if cart == nil || cart.ID == 0 {
		return nil, apperrors.ErrValidation.WithMessage("장바구니 정보가 필요합니다")
	}
	if cart.UserID != requestingUserID {
		logger.FromContext(ctx).Warn("Cross-user cart access rejected", map[string]interface{}{
			"cart_id":         cart.ID,
			"owner_id":        cart.UserID,
			"requesting_user": requestingUserID,
		})
		return nil, apperrors.ErrForbidden.WithMessage("다른 사용자의 장바구니입니다")
	}

	lines, err := s.repo.FindLines(ctx, cart.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list cart lines")
	}
	return lines, nil
}

func (s *cartService) ClearCart(ctx context.Context, userID uint) error {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if apperrors.IsRecordNotFound(err) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, "failed to find cart")
	}
	if err := s.repo.DeleteLines(ctx, cart.ID); err != nil {
		return apperrors.Wrap(err, "failed to clear cart")
	}
	return nil
}

// ownedLine loads lineID and checks that it sits in userID's cart.
func (s *cartService) ownedLine(ctx context.Context, userID, lineID uint) (*model.CartLine, error) {
	line, err := s.repo.FindLineByID(ctx, lineID)
	if apperrors.IsRecordNotFound(err) {
		return nil, apperrors.ErrCartLineNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find cart line")
	}

	cart, err := s.repo.FindByID(ctx, line.CartID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find cart")
	}
	if cart.UserID != userID {
		return nil, apperrors.ErrForbidden.WithMessage("다른 사용자의 장바구니 항목입니다")
	}
	return line, nil
}
