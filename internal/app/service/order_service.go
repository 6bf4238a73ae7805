package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/logger"
	"github.com/ikkim/storefront-backend/pkg/metrics"
	"github.com/ikkim/storefront-backend/pkg/tracing"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Cancellation triggers, used as metric labels.
const (
	CancelByRequest = "api"
	CancelByExpiry  = "expiry"
)

var hundred = decimal.NewFromInt(100)

type OrderLine struct {
	ProductTypeID uint
	Quantity      int
}

type PlaceOrderInput struct {
	UserID        uint
	BranchID      uint
	PromotionID   *uint
	Address       string
	PaymentMethod model.PaymentMethod
	Lines         []OrderLine
	// IdempotencyKey, when set, rejects a second placement with the same key for the same user.
	IdempotencyKey string
}

type CartCheckoutInput struct {
	UserID         uint
	BranchID       uint
	PromotionID    *uint
	Address        string
	PaymentMethod  model.PaymentMethod
	IdempotencyKey string
}

// IdempotencyGuard is satisfied by the Redis idempotency store.
type IdempotencyGuard interface {
	Acquire(ctx context.Context, scope uint, key string) (bool, error)
	Release(ctx context.Context, scope uint, key string) error
}

type OrderService interface {
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error)
	PlaceOrderFromCart(ctx context.Context, in CartCheckoutInput) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID uint) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error)
	ListUserOrders(ctx context.Context, userID uint) ([]model.Order, error)
	UpdateStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error)
	// ExpireStaleOrders cancels processing orders older than olderThan and
	// returns how many were cancelled.
	ExpireStaleOrders(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type OrderOption func(*orderService)

func WithIdempotencyGuard(guard IdempotencyGuard) OrderOption {
	return func(s *orderService) { s.idempotency = guard }
}

func WithClock(now func() time.Time) OrderOption {
	return func(s *orderService) { s.now = now }
}

type orderService struct {
	orders      repository.OrderRepository
	carts       repository.CartRepository
	products    repository.ProductRepository
	inventory   InventoryService
	promotions  PromotionService
	users       UserLookup
	branches    BranchLookup
	tx          repository.TxManager
	idempotency IdempotencyGuard
	now         func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	products repository.ProductRepository,
	inventory InventoryService,
	promotions PromotionService,
	users UserLookup,
	branches BranchLookup,
	tx repository.TxManager,
	opts ...OrderOption,
) OrderService {
	s := &orderService{
		orders:     orders,
		carts:      carts,
		products:   products,
		inventory:  inventory,
		promotions: promotions,
		users:      users,
		branches:   branches,
		tx:         tx,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateOrderNo returns a sortable, collision-resistant order number.
func GenerateOrderNo(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("ORD%s%s", now.Format("20060102"), id[:12])
}

func (s *orderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*model.Order, error) {
	return s.place(ctx, "OrderService.PlaceOrder", in, nil)
}

func (s *orderService) PlaceOrderFromCart(ctx context.Context, in CartCheckoutInput) (*model.Order, error) {
	cart, err := s.carts.FindByUserID(ctx, in.UserID)
	if apperrors.IsRecordNotFound(err) {
		return nil, apperrors.ErrCartEmpty
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find cart")
	}

	cartLines, err := s.carts.FindLines(ctx, cart.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list cart lines")
	}
	if len(cartLines) == 0 {
		return nil, apperrors.ErrCartEmpty
	}

	lines := make([]OrderLine, 0, len(cartLines))
	ordered := make(map[uint]int, len(cartLines))
	for _, cl := range cartLines {
		lines = append(lines, OrderLine{ProductTypeID: cl.ProductTypeID, Quantity: cl.Quantity})
		ordered[cl.ID] = cl.Quantity
	}

	return s.place(ctx, "OrderService.PlaceOrderFromCart", PlaceOrderInput{
		UserID:         in.UserID,
		BranchID:       in.BranchID,
		PromotionID:    in.PromotionID,
		Address:        in.Address,
		PaymentMethod:  in.PaymentMethod,
		Lines:          lines,
		IdempotencyKey: in.IdempotencyKey,
	}, func(ctx context.Context, _ *model.Order) error {
		// Only what was ordered leaves the cart; concurrent additions stay.
		if err := s.carts.ConsumeLines(ctx, cart.ID, ordered); err != nil {
			return apperrors.Wrap(err, "failed to clear cart")
		}
		return nil
	})
}

// place wraps placeOrder with tracing, metrics and idempotency bookkeeping.
func (s *orderService) place(
	ctx context.Context,
	spanName string,
	in PlaceOrderInput,
	afterCreate func(ctx context.Context, order *model.Order) error,
) (*model.Order, error) {
	start := time.Now()
	ctx, span := tracing.Tracer().Start(ctx, spanName)
	defer span.End()
	span.SetAttributes(
		attribute.Int("user.id", int(in.UserID)),
		attribute.Int("branch.id", int(in.BranchID)),
		attribute.Int("order.lines", len(in.Lines)),
	)

	log := logger.FromContext(ctx)
	log.Info("Placing order", map[string]interface{}{
		"user_id":      in.UserID,
		"branch_id":    in.BranchID,
		"promotion_id": in.PromotionID,
		"lines":        len(in.Lines),
	})

	order, err := s.placeOrder(ctx, in, afterCreate)
	metrics.OrderCreationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		kind := apperrors.KindOf(err)
		metrics.OrdersFailedTotal.WithLabelValues(kind.String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())

		if kind == apperrors.KindActionFailed {
			log.Error("Failed to place order", err, map[string]interface{}{
				"user_id":   in.UserID,
				"branch_id": in.BranchID,
			})
		} else {
			log.Warn("Order rejected", map[string]interface{}{
				"user_id":   in.UserID,
				"branch_id": in.BranchID,
				"kind":      kind.String(),
				"error":     err.Error(),
			})
		}
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()
	span.SetAttributes(attribute.String("order.no", order.OrderNo))
	log.Info("Order placed", map[string]interface{}{
		"order_id":     order.ID,
		"order_no":     order.OrderNo,
		"total_amount": order.TotalAmount.String(),
	})
	return order, nil
}

func (s *orderService) placeOrder(
	ctx context.Context,
	in PlaceOrderInput,
	afterCreate func(ctx context.Context, order *model.Order) error,
) (*model.Order, error) {
	lines, err := normalizeLines(in)
	if err != nil {
		return nil, err
	}

	// Fail fast on every lookup before anything is written.
	if _, err := s.users.FindUserByID(ctx, in.UserID); err != nil {
		return nil, err
	}
	if _, err := s.branches.FindBranchByID(ctx, in.BranchID); err != nil {
		return nil, err
	}

	var promo *model.Promotion
	if in.PromotionID != nil {
		if promo, err = s.promotions.Check(ctx, *in.PromotionID, in.UserID); err != nil {
			return nil, err
		}
	}

	ids := make([]uint, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductTypeID
	}
	productTypes, err := s.products.FindProductTypesByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load product types")
	}
	for _, id := range ids {
		if _, ok := productTypes[id]; !ok {
			return nil, apperrors.ErrProductTypeNotFound.WithMessage("상품 옵션(%d)을 찾을 수 없습니다", id)
		}
	}

	// committed keeps the idempotency key held once the order exists, even if
	// reloading it fails afterwards.
	committed := false
	if in.IdempotencyKey != "" && s.idempotency != nil {
		acquired, acqErr := s.idempotency.Acquire(ctx, in.UserID, in.IdempotencyKey)
		switch {
		case acqErr != nil:
			logger.FromContext(ctx).Warn("Idempotency guard unavailable, continuing without it", map[string]interface{}{
				"user_id": in.UserID,
				"error":   acqErr.Error(),
			})
		case !acquired:
			return nil, apperrors.ErrDuplicateRequest
		default:
			defer func() {
				if err != nil && !committed {
					if relErr := s.idempotency.Release(context.WithoutCancel(ctx), in.UserID, in.IdempotencyKey); relErr != nil {
						logger.FromContext(ctx).Warn("Failed to release idempotency key", map[string]interface{}{
							"user_id": in.UserID,
							"error":   relErr.Error(),
						})
					}
				}
			}()
		}
	}

	var orderID uint
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		// Lines are sorted by product type, so rows are always locked in the same order.
		details := make([]model.OrderDetail, 0, len(lines))
		for _, l := range lines {
			record, err := s.inventory.LockForOrder(ctx, l.ProductTypeID, in.BranchID)
			if err != nil {
				return err
			}
			if record.Quantity < l.Quantity {
				return apperrors.ErrInsufficientStock.WithMessage(
					"상품 옵션(%d) 재고가 부족합니다 (보유 %d, 요청 %d)", l.ProductTypeID, record.Quantity, l.Quantity)
			}
			details = append(details, buildDetail(record, productTypes[l.ProductTypeID], l.Quantity))
		}

		order := &model.Order{
			OrderNo:        GenerateOrderNo(s.now()),
			UserID:         in.UserID,
			BranchID:       in.BranchID,
			PromotionID:    in.PromotionID,
			Address:        strings.TrimSpace(in.Address),
			PaymentMethod:  in.PaymentMethod,
			Status:         model.OrderStatusProcessing,
			IdempotencyKey: in.IdempotencyKey,
			OrderDetails:   details,
		}
		if promo != nil {
			order.DiscountPercent = promo.Discount
		}
		applyTotals(order)

		if err := s.orders.Create(ctx, order); err != nil {
			return apperrors.Wrap(err, "failed to create order")
		}

		for _, d := range order.OrderDetails {
			if _, err := s.inventory.Adjust(ctx, Adjustment{
				ProductTypeID: d.ProductTypeID,
				BranchID:      in.BranchID,
				Delta:         -d.Quantity,
				ChangeType:    model.MovementDeduct,
				OrderID:       &order.ID,
				Remark:        order.OrderNo,
			}); err != nil {
				return err
			}
		}

		// The promotion is consumed only once the order row exists.
		if in.PromotionID != nil {
			if _, err := s.promotions.Redeem(ctx, *in.PromotionID, in.UserID, order.ID); err != nil {
				return err
			}
		}

		if afterCreate != nil {
			if err := afterCreate(ctx, order); err != nil {
				return err
			}
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		err = apperrors.Wrap(err, "failed to place order")
		return nil, err
	}
	committed = true

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		err = apperrors.Wrap(err, "failed to load order")
		return nil, err
	}
	return order, nil
}

// normalizeLines validates the request and merges repeated product types,
// returning lines sorted by product type ID.
func normalizeLines(in PlaceOrderInput) ([]OrderLine, error) {
	if in.UserID == 0 {
		return nil, apperrors.ErrInvalidID.WithMessage("사용자 ID가 필요합니다")
	}
	if in.BranchID == 0 {
		return nil, apperrors.ErrInvalidID.WithMessage("지점 ID가 필요합니다")
	}
	if in.PromotionID != nil && *in.PromotionID == 0 {
		return nil, apperrors.ErrInvalidID.WithMessage("잘못된 프로모션 ID입니다")
	}
	if strings.TrimSpace(in.Address) == "" {
		return nil, apperrors.ErrValidation.WithMessage("배송지 주소가 필요합니다")
	}
	if !in.PaymentMethod.Valid() {
		return nil, apperrors.ErrValidation.WithMessage("지원하지 않는 결제 수단입니다")
	}
	if len(in.Lines) == 0 {
		return nil, apperrors.ErrValidation.WithMessage("주문 항목이 없습니다")
	}

	merged := make(map[uint]int, len(in.Lines))
	for _, l := range in.Lines {
		if l.ProductTypeID == 0 {
			return nil, apperrors.ErrInvalidID.WithMessage("상품 옵션 ID가 필요합니다")
		}
		if l.Quantity <= 0 {
			return nil, apperrors.ErrInvalidQuantity
		}
		merged[l.ProductTypeID] += l.Quantity
	}

	lines := make([]OrderLine, 0, len(merged))
	for id, q := range merged {
		lines = append(lines, OrderLine{ProductTypeID: id, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductTypeID < lines[j].ProductTypeID })
	return lines, nil
}

func buildDetail(record *model.InventoryRecord, pt model.ProductType, quantity int) model.OrderDetail {
	amount := pt.Price.Mul(decimal.NewFromInt(int64(quantity)))
	return model.OrderDetail{
		InventoryRecordID: record.ID,
		ProductTypeID:     pt.ID,
		Quantity:          quantity,
		UnitPrice:         pt.Price,
		AmountNotVat:      amount,
		VATRate:           pt.VATRate,
		VATAmount:         amount.Mul(pt.VATRate).Div(hundred).Round(2),
	}
}

// applyTotals derives order totals from the details. The discount applies to
// the pre-VAT total and to VAT proportionally; detail amounts are left as is.
func applyTotals(order *model.Order) {
	totalNotVat := decimal.Zero
	totalVat := decimal.Zero
	for _, d := range order.OrderDetails {
		totalNotVat = totalNotVat.Add(d.AmountNotVat)
		totalVat = totalVat.Add(d.VATAmount)
	}

	rate := decimal.NewFromInt(int64(order.DiscountPercent)).Div(hundred)
	order.TotalNotVat = totalNotVat
	order.DiscountAmount = totalNotVat.Mul(rate).Round(2)
	order.TotalVat = totalVat.Sub(totalVat.Mul(rate)).Round(2)
	order.TotalAmount = totalNotVat.Sub(order.DiscountAmount).Add(order.TotalVat)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID uint) (*model.Order, error) {
	order, _, err := s.cancel(ctx, orderID, CancelByRequest, nil)
	return order, err
}

// cancel reverses the order's ledger effects and marks it cancelled in one
// transaction. Cancelling an already-cancelled order is a no-op. When expect is
// set, an order no longer in that status once locked is left untouched. The
// returned flag reports whether this call cancelled the order.
func (s *orderService) cancel(
	ctx context.Context,
	orderID uint,
	trigger string,
	expect *model.OrderStatus,
) (*model.Order, bool, error) {
	ctx, span := tracing.Tracer().Start(ctx, "OrderService.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.Int("order.id", int(orderID)), attribute.String("cancel.trigger", trigger))

	log := logger.FromContext(ctx)
	cancelled := false

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.LockByID(ctx, orderID)
		if apperrors.IsRecordNotFound(err) {
			return apperrors.ErrOrderNotFound
		}
		if err != nil {
			return apperrors.Wrap(err, "failed to lock order")
		}
		if order.Status == model.OrderStatusCancelled {
			return nil
		}
		if expect != nil && order.Status != *expect {
			log.Info("Order status changed before cancellation, skipping", map[string]interface{}{
				"order_id": orderID,
				"status":   order.Status,
				"expected": *expect,
				"trigger":  trigger,
			})
			return nil
		}
		if !order.Status.CanTransitionTo(model.OrderStatusCancelled) {
			return apperrors.ErrInvalidTransition.WithMessage("%s 상태의 주문은 취소할 수 없습니다", order.Status)
		}

		details := append([]model.OrderDetail(nil), order.OrderDetails...)
		sort.Slice(details, func(i, j int) bool { return details[i].ProductTypeID < details[j].ProductTypeID })
		for _, d := range details {
			if _, err := s.inventory.Adjust(ctx, Adjustment{
				ProductTypeID: d.ProductTypeID,
				BranchID:      order.BranchID,
				Delta:         d.Quantity,
				ChangeType:    model.MovementRelease,
				OrderID:       &order.ID,
				Remark:        order.OrderNo,
			}); err != nil {
				return err
			}
		}

		if order.PromotionID != nil {
			if err := s.promotions.ReleaseRedemption(ctx, *order.PromotionID, order.UserID); err != nil {
				return err
			}
		}

		now := s.now()
		if err := s.orders.UpdateStatus(ctx, order.ID, model.OrderStatusCancelled, &now); err != nil {
			return apperrors.Wrap(err, "failed to cancel order")
		}
		cancelled = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		log.Warn("Order cancellation failed", map[string]interface{}{
			"order_id": orderID,
			"trigger":  trigger,
			"error":    err.Error(),
		})
		return nil, false, apperrors.Wrap(err, "failed to cancel order")
	}

	if cancelled {
		metrics.OrdersCancelledTotal.WithLabelValues(trigger).Inc()
		log.Info("Order cancelled", map[string]interface{}{
			"order_id": orderID,
			"trigger":  trigger,
		})
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, cancelled, apperrors.Wrap(err, "failed to load order")
	}
	return order, cancelled, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if apperrors.IsRecordNotFound(err) {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find order")
	}
	if order.UserID != userID {
		return nil, apperrors.ErrForbidden.WithMessage("다른 사용자의 주문입니다")
	}
	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	orders, err := s.orders.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list orders")
	}
	return orders, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID uint, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, apperrors.ErrValidation.WithMessage("잘못된 주문 상태입니다")
	}
	if status == model.OrderStatusCancelled {
		return s.CancelOrder(ctx, orderID)
	}

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		order, err := s.orders.LockByID(ctx, orderID)
		if apperrors.IsRecordNotFound(err) {
			return apperrors.ErrOrderNotFound
		}
		if err != nil {
			return apperrors.Wrap(err, "failed to lock order")
		}
		if !order.Status.CanTransitionTo(status) {
			return apperrors.ErrInvalidTransition.WithMessage(
				"%s 상태에서 %s 상태로 변경할 수 없습니다", order.Status, status)
		}
		return s.orders.UpdateStatus(ctx, orderID, status, nil)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to update order status")
	}

	logger.FromContext(ctx).Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"status":   status,
	})

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load order")
	}
	return order, nil
}

func (s *orderService) ExpireStaleOrders(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.orders.FindStale(ctx, model.OrderStatusProcessing, cutoff, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to find stale orders")
	}

	// The candidates are read without a lock, so each one is re-checked
	// under the order lock and skipped if it has left processing meanwhile.
	pending := model.OrderStatusProcessing
	var errs []error
	expired := 0
	for _, o := range stale {
		_, cancelled, err := s.cancel(ctx, o.ID, CancelByExpiry, &pending)
		if err != nil {
			errs = append(errs, fmt.Errorf("order %d: %w", o.ID, err))
			continue
		}
		if cancelled {
			expired++
		}
	}

	if expired > 0 || len(errs) > 0 {
		logger.FromContext(ctx).Info("Stale orders expired", map[string]interface{}{
			"cutoff":  cutoff,
			"expired": expired,
			"failed":  len(errs),
		})
	}
	return expired, errors.Join(errs...)
}
