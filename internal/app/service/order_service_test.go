package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestOrderService_PlaceOrder(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)
	env.stock(t, env.shirt, 2)

	order, err := env.orders.PlaceOrder(ctx, env.orderInput(
		OrderLine{ProductTypeID: env.shirt.ID, Quantity: 1},
		OrderLine{ProductTypeID: env.mug.ID, Quantity: 1},
		OrderLine{ProductTypeID: env.mug.ID, Quantity: 1},
	))
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusProcessing, order.Status)
	assert.Regexp(t, `^ORD\d{8}[0-9A-F]{12}$`, order.OrderNo)
	require.Len(t, order.OrderDetails, 2)
	assertAmount(t, "4500.50", order.TotalNotVat)
	assertAmount(t, "0", order.DiscountAmount)
	assertAmount(t, "450.05", order.TotalVat)
	assertAmount(t, "4950.55", order.TotalAmount)

	assert.Equal(t, 3, env.quantity(t, env.mug))
	assert.Equal(t, 1, env.quantity(t, env.shirt))

	var movements []model.InventoryMovement
	require.NoError(t, env.db.Where("order_id = ?", order.ID).Find(&movements).Error)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, model.MovementDeduct, m.ChangeType)
		assert.Equal(t, order.OrderNo, m.Remark)
	}
}

func TestOrderService_PlaceOrderWithPromotion(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)
	promo := env.promotion(t, "SPRING", 10, 1, true)

	in := env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 2})
	in.PromotionID = uintPtr(promo.ID)
	order, err := env.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, 10, order.DiscountPercent)
	assertAmount(t, "2000", order.TotalNotVat)
	assertAmount(t, "200", order.DiscountAmount)
	assertAmount(t, "180", order.TotalVat)
	assertAmount(t, "1980", order.TotalAmount)
	assert.Equal(t, 0, env.remaining(t, promo))

	var redemption model.UserPromotion
	require.NoError(t, env.db.Where("user_id = ? AND promotion_id = ?", env.user.ID, promo.ID).First(&redemption).Error)
	assert.Equal(t, model.RedemptionUsed, redemption.Status)
	require.NotNil(t, redemption.OrderID)
	assert.Equal(t, order.ID, *redemption.OrderID)

	_, err = env.orders.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, apperrors.ErrPromotionUnavailable)
	assert.Equal(t, 3, env.quantity(t, env.mug))
}

func TestOrderService_PlaceOrderRollsBackOnShortage(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)
	env.stock(t, env.shirt, 1)
	promo := env.promotion(t, "SPRING", 10, 1, true)

	in := env.orderInput(
		OrderLine{ProductTypeID: env.mug.ID, Quantity: 2},
		OrderLine{ProductTypeID: env.shirt.ID, Quantity: 3},
	)
	in.PromotionID = uintPtr(promo.ID)

	_, err := env.orders.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	assert.Equal(t, 5, env.quantity(t, env.mug))
	assert.Equal(t, 1, env.quantity(t, env.shirt))
	assert.Equal(t, 1, env.remaining(t, promo))

	var orders, movements int64
	env.db.Model(&model.Order{}).Count(&orders)
	env.db.Model(&model.InventoryMovement{}).Where("change_type = ?", model.MovementDeduct).Count(&movements)
	assert.Zero(t, orders)
	assert.Zero(t, movements)
}

func TestOrderService_PlaceOrderValidation(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)
	line := OrderLine{ProductTypeID: env.mug.ID, Quantity: 1}

	tests := []struct {
		name   string
		mutate func(*PlaceOrderInput)
		want   error
	}{
		{"no lines", func(in *PlaceOrderInput) { in.Lines = nil }, apperrors.ErrValidation},
		{"zero quantity", func(in *PlaceOrderInput) { in.Lines = []OrderLine{{ProductTypeID: env.mug.ID}} }, apperrors.ErrInvalidQuantity},
		{"blank address", func(in *PlaceOrderInput) { in.Address = "  " }, apperrors.ErrValidation},
		{"bad payment", func(in *PlaceOrderInput) { in.PaymentMethod = "points" }, apperrors.ErrValidation},
		{"unknown user", func(in *PlaceOrderInput) { in.UserID = 9999 }, apperrors.ErrUserNotFound},
		{"unknown branch", func(in *PlaceOrderInput) { in.BranchID = 9999 }, apperrors.ErrBranchNotFound},
		{"unknown product type", func(in *PlaceOrderInput) { in.Lines = []OrderLine{{ProductTypeID: 9999, Quantity: 1}} }, apperrors.ErrProductTypeNotFound},
		{"not stocked", func(in *PlaceOrderInput) { in.Lines = []OrderLine{{ProductTypeID: env.shirt.ID, Quantity: 1}} }, apperrors.ErrInventoryNotFound},
		{"unknown promotion", func(in *PlaceOrderInput) { in.PromotionID = uintPtr(9999) }, apperrors.ErrPromotionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := env.orderInput(line)
			tt.mutate(&in)
			_, err := env.orders.PlaceOrder(ctx, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 5, env.quantity(t, env.mug))
}

func TestOrderService_ConcurrentOrdersNeverOversell(t *testing.T) {
	env := setupServiceTest(t)
	env.stock(t, env.mug, 10)

	quantities := []int{4, 8}
	errs := make([]error, len(quantities))
	var wg sync.WaitGroup
	for i, q := range quantities {
		wg.Add(1)
		go func(i, q int) {
			defer wg.Done()
			_, errs[i] = env.orders.PlaceOrder(context.Background(), env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: q}))
		}(i, q)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Contains(t, []int{2, 6}, env.quantity(t, env.mug))
}

func TestOrderService_PlaceOrderFromCart(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)

	checkout := CartCheckoutInput{
		UserID:        env.user.ID,
		BranchID:      env.branch.ID,
		Address:       "부산시 해운대구 1",
		PaymentMethod: model.PaymentTransfer,
	}

	_, err := env.orders.PlaceOrderFromCart(ctx, checkout)
	assert.ErrorIs(t, err, apperrors.ErrCartEmpty)

	cart, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)
	_, err = env.carts.AddLine(ctx, cart, env.mug.ID, 1, "")
	require.NoError(t, err)
	_, err = env.carts.AddLine(ctx, cart, env.mug.ID, 2, "ENGRAVED")
	require.NoError(t, err)

	order, err := env.orders.PlaceOrderFromCart(ctx, checkout)
	require.NoError(t, err)
	require.Len(t, order.OrderDetails, 1)
	assert.Equal(t, 3, order.OrderDetails[0].Quantity)
	assert.Equal(t, 2, env.quantity(t, env.mug))

	lines, err := env.carts.GetLines(ctx, cart, env.user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestOrderService_PlaceOrderFromCartKeepsCartOnFailure(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 1)

	cart, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)
	_, err = env.carts.AddLine(ctx, cart, env.mug.ID, 2, "")
	require.NoError(t, err)

	_, err = env.orders.PlaceOrderFromCart(ctx, CartCheckoutInput{
		UserID:        env.user.ID,
		BranchID:      env.branch.ID,
		Address:       "부산시 해운대구 1",
		PaymentMethod: model.PaymentCash,
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	lines, err := env.carts.GetLines(ctx, cart, env.user.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestOrderService_CancelOrderRestoresLedgers(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)
	promo := env.promotion(t, "SPRING", 10, 1, true)

	in := env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 2})
	in.PromotionID = uintPtr(promo.ID)
	order, err := env.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)

	cancelled, err := env.orders.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, env.quantity(t, env.mug))
	assert.Equal(t, 1, env.remaining(t, promo))

	// second cancel is a no-op
	_, err = env.orders.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, env.quantity(t, env.mug))
	assert.Equal(t, 1, env.remaining(t, promo))

	_, err = env.orders.CancelOrder(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

func TestOrderService_UpdateStatus(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)

	order, err := env.orders.PlaceOrder(ctx, env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 1}))
	require.NoError(t, err)

	_, err = env.orders.UpdateStatus(ctx, order.ID, model.OrderStatusDelivered)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	for _, next := range []model.OrderStatus{model.OrderStatusConfirmed, model.OrderStatusShipping, model.OrderStatusDelivered} {
		updated, err := env.orders.UpdateStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err = env.orders.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, 4, env.quantity(t, env.mug))

	_, err = env.orders.UpdateStatus(ctx, order.ID, "lost")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestOrderService_GetAndList(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)

	order, err := env.orders.PlaceOrder(ctx, env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 1}))
	require.NoError(t, err)

	got, err := env.orders.GetOrder(ctx, env.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNo, got.OrderNo)

	_, err = env.orders.GetOrder(ctx, env.other.ID, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = env.orders.GetOrder(ctx, env.user.ID, 9999)
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)

	list, err := env.orders.ListUserOrders(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = env.orders.ListUserOrders(ctx, env.other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOrderService_ExpireStaleOrders(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)

	stale, err := env.orders.PlaceOrder(ctx, env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 2}))
	require.NoError(t, err)
	confirmed, err := env.orders.PlaceOrder(ctx, env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = env.orders.UpdateStatus(ctx, confirmed.ID, model.OrderStatusConfirmed)
	require.NoError(t, err)

	n, err := env.orders.ExpireStaleOrders(ctx, 30*time.Minute, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	env.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = env.orders.ExpireStaleOrders(ctx, 30*time.Minute, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := env.orders.GetOrder(ctx, env.user.ID, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, got.Status)
	assert.Equal(t, 4, env.quantity(t, env.mug))
}

// confirmingOrderRepository confirms every stale order right after the sweep
// has listed it, as an operator acting concurrently would.
type confirmingOrderRepository struct {
	repository.OrderRepository
	db *gorm.DB
}

func (r *confirmingOrderRepository) FindStale(ctx context.Context, status model.OrderStatus, before time.Time, limit int) ([]model.Order, error) {
	orders, err := r.OrderRepository.FindStale(ctx, status, before, limit)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if err := r.db.Model(&model.Order{}).Where("id = ?", o.ID).Update("status", model.OrderStatusConfirmed).Error; err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func TestOrderService_ExpireSkipsOrdersConfirmedMeanwhile(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)

	order, err := env.orders.PlaceOrder(ctx, env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 1}))
	require.NoError(t, err)

	svc := env.orderService(&confirmingOrderRepository{OrderRepository: env.orderRepo, db: env.db}, env.cartRepo)
	env.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	n, err := svc.ExpireStaleOrders(ctx, time.Hour, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := env.orders.GetOrder(ctx, env.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, got.Status)
	assert.Nil(t, got.CancelledAt)
	assert.Equal(t, 4, env.quantity(t, env.mug))
}

// growingCartRepository adds to the cart right after checkout has read it.
type growingCartRepository struct {
	repository.CartRepository
	grow func(ctx context.Context, cartID uint) error
	once sync.Once
}

func (r *growingCartRepository) FindLines(ctx context.Context, cartID uint) ([]model.CartLine, error) {
	lines, err := r.CartRepository.FindLines(ctx, cartID)
	if err != nil {
		return nil, err
	}
	var growErr error
	r.once.Do(func() { growErr = r.grow(ctx, cartID) })
	return lines, growErr
}

func TestOrderService_PlaceOrderFromCartKeepsLinesAddedDuringCheckout(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 5)
	env.stock(t, env.shirt, 5)

	cart, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)
	_, err = env.carts.AddLine(ctx, cart, env.mug.ID, 1, "")
	require.NoError(t, err)

	carts := &growingCartRepository{CartRepository: env.cartRepo}
	carts.grow = func(ctx context.Context, cartID uint) error {
		if _, err := env.cartRepo.IncrementLine(ctx, cartID, env.mug.ID, "", 2); err != nil {
			return err
		}
		return env.cartRepo.CreateLine(ctx, &model.CartLine{CartID: cartID, ProductTypeID: env.shirt.ID, Quantity: 1})
	}
	svc := env.orderService(env.orderRepo, carts)

	order, err := svc.PlaceOrderFromCart(ctx, CartCheckoutInput{
		UserID:        env.user.ID,
		BranchID:      env.branch.ID,
		Address:       "부산시 해운대구 1",
		PaymentMethod: model.PaymentCard,
	})
	require.NoError(t, err)
	require.Len(t, order.OrderDetails, 1)
	assert.Equal(t, 1, order.OrderDetails[0].Quantity)

	lines, err := env.carts.GetLines(ctx, cart, env.user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	byType := map[uint]int{}
	for _, l := range lines {
		byType[l.ProductTypeID] = l.Quantity
	}
	assert.Equal(t, 2, byType[env.mug.ID], "quantity merged during checkout stays in the cart")
	assert.Equal(t, 1, byType[env.shirt.ID])
	assert.Equal(t, 4, env.quantity(t, env.mug))
	assert.Equal(t, 5, env.quantity(t, env.shirt))
}

type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	released int
	err      error
}

func (g *fakeGuard) Acquire(_ context.Context, scope uint, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	k := key + "/" + string(rune('0'+scope))
	if g.held[k] {
		return false, nil
	}
	g.held[k] = true
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, scope uint, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, key+"/"+string(rune('0'+scope)))
	g.released++
	return nil
}

func TestOrderService_IdempotencyKey(t *testing.T) {
	guard := &fakeGuard{held: map[string]bool{}}
	env := setupServiceTest(t, WithIdempotencyGuard(guard))
	ctx := context.Background()
	env.stock(t, env.mug, 3)

	in := env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 1})
	in.IdempotencyKey = "checkout-1"

	_, err := env.orders.PlaceOrder(ctx, in)
	require.NoError(t, err)

	_, err = env.orders.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
	assert.Equal(t, 2, env.quantity(t, env.mug))

	short := in
	short.IdempotencyKey = "checkout-2"
	short.Lines = []OrderLine{{ProductTypeID: env.mug.ID, Quantity: 9}}
	_, err = env.orders.PlaceOrder(ctx, short)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
	assert.Equal(t, 1, guard.released)

	// a failed attempt frees its key for a retry
	short.Lines = []OrderLine{{ProductTypeID: env.mug.ID, Quantity: 1}}
	_, err = env.orders.PlaceOrder(ctx, short)
	assert.NoError(t, err)
}

// unreadableOrderRepository fails every reload after the order is written.
type unreadableOrderRepository struct {
	repository.OrderRepository
}

func (r *unreadableOrderRepository) FindByID(context.Context, uint) (*model.Order, error) {
	return nil, errors.New("read replica unavailable")
}

func TestOrderService_IdempotencyKeyHeldAfterCommit(t *testing.T) {
	guard := &fakeGuard{held: map[string]bool{}}
	env := setupServiceTest(t)
	ctx := context.Background()
	env.stock(t, env.mug, 3)

	svc := env.orderService(&unreadableOrderRepository{OrderRepository: env.orderRepo}, env.cartRepo, WithIdempotencyGuard(guard))

	in := env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 1})
	in.IdempotencyKey = "checkout-1"

	_, err := svc.PlaceOrder(ctx, in)
	require.Error(t, err)
	assert.Zero(t, guard.released, "the order exists, so the key must stay held")
	assert.Equal(t, 2, env.quantity(t, env.mug))

	_, err = svc.PlaceOrder(ctx, in)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
	assert.Equal(t, 2, env.quantity(t, env.mug))
}

func TestOrderService_IdempotencyGuardOutageDoesNotBlock(t *testing.T) {
	guard := &fakeGuard{held: map[string]bool{}, err: errors.New("redis down")}
	env := setupServiceTest(t, WithIdempotencyGuard(guard))
	env.stock(t, env.mug, 3)

	in := env.orderInput(OrderLine{ProductTypeID: env.mug.ID, Quantity: 1})
	in.IdempotencyKey = "checkout-1"
	_, err := env.orders.PlaceOrder(context.Background(), in)
	assert.NoError(t, err)
}

func TestApplyTotals(t *testing.T) {
	order := &model.Order{
		DiscountPercent: 100,
		OrderDetails: []model.OrderDetail{
			buildDetail(&model.InventoryRecord{ID: 1}, model.ProductType{ID: 1, Price: decimal.NewFromInt(1000), VATRate: decimal.NewFromInt(10)}, 3),
		},
	}
	applyTotals(order)

	assertAmount(t, "3000", order.TotalNotVat)
	assertAmount(t, "3000", order.DiscountAmount)
	assertAmount(t, "0", order.TotalVat)
	assertAmount(t, "0", order.TotalAmount)
}
