package service

import (
	"context"
	"strings"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/metrics"
	"github.com/ikkim/storefront-backend/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// PromotionPolicy decides whether a promotion may be used right now.
type PromotionPolicy struct {
	// RequireApproval rejects unapproved promotions unless their name starts
	// with one of SystemNamePrefixes.
	RequireApproval    bool
	SystemNamePrefixes []string
	Now                func() time.Time
}

func (p PromotionPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// IsSystem reports whether promo is exempt from approval.
func (p PromotionPolicy) IsSystem(promo *model.Promotion) bool {
	for _, prefix := range p.SystemNamePrefixes {
		if prefix != "" && strings.HasPrefix(promo.Name, prefix) {
			return true
		}
	}
	return false
}

// Applicable checks the validity window and approval state.
func (p PromotionPolicy) Applicable(promo *model.Promotion) error {
	now := p.now()
	if now.Before(promo.StartDate) {
		return apperrors.ErrPromotionUnavailable.WithMessage("아직 시작되지 않은 프로모션입니다")
	}
	if now.After(promo.EndDate) {
		return apperrors.ErrPromotionUnavailable.WithMessage("종료된 프로모션입니다")
	}
	if p.RequireApproval && !promo.Approved && !p.IsSystem(promo) {
		return apperrors.ErrPromotionUnavailable.WithMessage("승인되지 않은 프로모션입니다")
	}
	return nil
}

// PromotionService is the promotion ledger. RemainingQuantity only moves
// through conditional single-statement updates, and each (user, promotion)
// pair owns at most one redemption row whose status is transitioned in place.
type PromotionService interface {
	Get(ctx context.Context, promotionID uint) (*model.Promotion, error)
	// Check validates that userID could redeem promotionID now, without writing.
	Check(ctx context.Context, promotionID, userID uint) (*model.Promotion, error)
	Claim(ctx context.Context, promotionID, userID uint) (*model.UserPromotion, error)
	// Redeem consumes the promotion for orderID inside the caller's transaction.
	Redeem(ctx context.Context, promotionID, userID, orderID uint) (*model.UserPromotion, error)
	Release(ctx context.Context, promotionID uint) error
	ReleaseRedemption(ctx context.Context, promotionID, userID uint) error
	ListByUser(ctx context.Context, userID uint) ([]model.UserPromotion, error)
}

type promotionService struct {
	repo   repository.PromotionRepository
	tx     repository.TxManager
	users  UserLookup
	policy PromotionPolicy
}

func NewPromotionService(
	repo repository.PromotionRepository,
	tx repository.TxManager,
	users UserLookup,
	policy PromotionPolicy,
) PromotionService {
	return &promotionService{repo: repo, tx: tx, users: users, policy: policy}
}

func promotionNotFound(id uint) error {
	return apperrors.ErrPromotionNotFound.WithMessage("프로모션(%d)을 찾을 수 없습니다", id)
}

func (s *promotionService) Get(ctx context.Context, promotionID uint) (*model.Promotion, error) {
	promo, err := s.repo.FindByID(ctx, promotionID)
	if apperrors.IsRecordNotFound(err) {
		return nil, promotionNotFound(promotionID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find promotion")
	}
	return promo, nil
}

func (s *promotionService) Check(ctx context.Context, promotionID, userID uint) (*model.Promotion, error) {
	promo, err := s.Get(ctx, promotionID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.Applicable(promo); err != nil {
		return nil, err
	}

	redemption, err := s.repo.FindRedemption(ctx, userID, promotionID)
	if err != nil && !apperrors.IsRecordNotFound(err) {
		return nil, apperrors.Wrap(err, "failed to find redemption")
	}
	if redemption != nil {
		switch redemption.Status {
		case model.RedemptionPending:
			// already holds a unit
			return promo, nil
		case model.RedemptionUsed:
			return nil, apperrors.ErrPromotionUnavailable.WithMessage("이미 사용한 프로모션입니다")
		}
	}

	if promo.RemainingQuantity <= 0 {
		return nil, apperrors.ErrPromotionUnavailable.WithMessage("프로모션 수량이 모두 소진되었습니다")
	}
	return promo, nil
}

func (s *promotionService) Claim(ctx context.Context, promotionID, userID uint) (*model.UserPromotion, error) {
	ctx, span := tracing.Tracer().Start(ctx, "PromotionService.Claim")
	defer span.End()
	span.SetAttributes(attribute.Int("promotion.id", int(promotionID)), attribute.Int("user.id", int(userID)))

	log := logger.FromContext(ctx)
	log.Info("Claiming promotion", map[string]interface{}{
		"promotion_id": promotionID,
		"user_id":      userID,
	})

	if _, err := s.users.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}

	var result *model.UserPromotion
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		promo, err := s.repo.LockByID(ctx, promotionID)
		if apperrors.IsRecordNotFound(err) {
			return promotionNotFound(promotionID)
		}
		if err != nil {
			return apperrors.Wrap(err, "failed to lock promotion")
		}
		if err := s.policy.Applicable(promo); err != nil {
			return err
		}

		existing, err := s.findRedemption(ctx, userID, promotionID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status.Active() {
			return apperrors.ErrPromotionUnavailable.WithMessage("이미 발급받은 프로모션입니다")
		}

		if err := s.take(ctx, promotionID); err != nil {
			return err
		}

		result, err = s.upsertRedemption(ctx, existing, userID, promotionID, model.RedemptionPending, nil)
		return err
	})
	if err != nil {
		metrics.PromotionClaimsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		span.RecordError(err)
		log.Warn("Promotion claim rejected", map[string]interface{}{
			"promotion_id": promotionID,
			"user_id":      userID,
			"error":        err.Error(),
		})
		return nil, err
	}

	metrics.PromotionClaimsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Info("Promotion claimed", map[string]interface{}{
		"promotion_id":  promotionID,
		"user_id":       userID,
		"redemption_id": result.ID,
	})
	return result, nil
}

func (s *promotionService) Redeem(ctx context.Context, promotionID, userID, orderID uint) (*model.UserPromotion, error) {
	var result *model.UserPromotion
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		promo, err := s.repo.LockByID(ctx, promotionID)
		if apperrors.IsRecordNotFound(err) {
			return promotionNotFound(promotionID)
		}
		if err != nil {
			return apperrors.Wrap(err, "failed to lock promotion")
		}
		if err := s.policy.Applicable(promo); err != nil {
			return err
		}

		existing, err := s.findRedemption(ctx, userID, promotionID)
		if err != nil {
			return err
		}

		switch {
		case existing != nil && existing.Status == model.RedemptionUsed:
			return apperrors.ErrPromotionUnavailable.WithMessage("이미 사용한 프로모션입니다")
		case existing != nil && existing.Status == model.RedemptionPending:
			// the unit was taken at claim time
		default:
			if err := s.take(ctx, promotionID); err != nil {
				return err
			}
		}

		result, err = s.upsertRedemption(ctx, existing, userID, promotionID, model.RedemptionUsed, &orderID)
		return err
	})
	if err != nil {
		metrics.PromotionClaimsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, err
	}

	metrics.PromotionClaimsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	logger.FromContext(ctx).Info("Promotion redeemed for order", map[string]interface{}{
		"promotion_id": promotionID,
		"user_id":      userID,
		"order_id":     orderID,
	})
	return result, nil
}

func (s *promotionService) Release(ctx context.Context, promotionID uint) error {
	rows, err := s.repo.Increment(ctx, promotionID)
	if err != nil {
		return apperrors.Wrap(err, "failed to release promotion")
	}
	if rows == 0 {
		return promotionNotFound(promotionID)
	}

	logger.FromContext(ctx).Info("Promotion unit released", map[string]interface{}{
		"promotion_id": promotionID,
	})
	return nil
}

// ReleaseRedemption returns the user's unit to the pool. Releasing an
// inactive or missing redemption is a no-op.
func (s *promotionService) ReleaseRedemption(ctx context.Context, promotionID, userID uint) error {
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockByID(ctx, promotionID); err != nil {
			if apperrors.IsRecordNotFound(err) {
				return promotionNotFound(promotionID)
			}
			return apperrors.Wrap(err, "failed to lock promotion")
		}

		existing, err := s.findRedemption(ctx, userID, promotionID)
		if err != nil {
			return err
		}
		if existing == nil || !existing.Status.Active() {
			return nil
		}

		if err := s.repo.UpdateRedemption(ctx, existing.ID, model.RedemptionReleased, existing.OrderID); err != nil {
			return apperrors.Wrap(err, "failed to release redemption")
		}
		return s.Release(ctx, promotionID)
	})
}

func (s *promotionService) ListByUser(ctx context.Context, userID uint) ([]model.UserPromotion, error) {
	redemptions, err := s.repo.ListRedemptionsByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list redemptions")
	}
	return redemptions, nil
}

func (s *promotionService) findRedemption(ctx context.Context, userID, promotionID uint) (*model.UserPromotion, error) {
	redemption, err := s.repo.FindRedemption(ctx, userID, promotionID)
	if apperrors.IsRecordNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find redemption")
	}
	return redemption, nil
}

// take decrements RemainingQuantity by one or fails with PromotionUnavailable.
func (s *promotionService) take(ctx context.Context, promotionID uint) error {
	rows, err := s.repo.Decrement(ctx, promotionID)
	if err != nil {
		return apperrors.Wrap(err, "failed to decrement promotion")
	}
	if rows == 0 {
		return apperrors.ErrPromotionUnavailable.WithMessage("프로모션 수량이 모두 소진되었습니다")
	}
	return nil
}

func (s *promotionService) upsertRedemption(
	ctx context.Context,
	existing *model.UserPromotion,
	userID, promotionID uint,
	status model.RedemptionStatus,
	orderID *uint,
) (*model.UserPromotion, error) {
	if existing != nil {
		if err := s.repo.UpdateRedemption(ctx, existing.ID, status, orderID); err != nil {
			return nil, apperrors.Wrap(err, "failed to update redemption")
		}
		existing.Status = status
		existing.OrderID = orderID
		return existing, nil
	}

	redemption := &model.UserPromotion{
		UserID:      userID,
		PromotionID: promotionID,
		Status:      status,
		OrderID:     orderID,
	}
	if err := s.repo.CreateRedemption(ctx, redemption); err != nil {
		if apperrors.IsDuplicateKey(err) {
			return nil, apperrors.ErrPromotionUnavailable.WithMessage("이미 발급받은 프로모션입니다")
		}
		return nil, apperrors.Wrap(err, "failed to create redemption")
	}
	return redemption, nil
}
