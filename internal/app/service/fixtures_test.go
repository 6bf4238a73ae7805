package service

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	db     *gorm.DB
	user   *model.User
	other  *model.User
	branch *model.Branch
	mug    *model.ProductType
	shirt  *model.ProductType

	now func() time.Time

	inventoryRepo repository.InventoryRepository
	promotionRepo repository.PromotionRepository
	orderRepo     repository.OrderRepository
	cartRepo      repository.CartRepository
	productRepo   repository.ProductRepository
	lookup        *CatalogLookup
	tx            repository.TxManager

	inventory  InventoryService
	promotions PromotionService
	carts      CartService
	orders     OrderService
}

func setupServiceTest(t *testing.T, opts ...OrderOption) *testEnv {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	env := &testEnv{db: testDB, now: time.Now}

	env.user = &model.User{Email: "buyer@example.com", Name: "Buyer", Role: model.RoleUser}
	env.other = &model.User{Email: "other@example.com", Name: "Other", Role: model.RoleUser}
	require.NoError(t, testDB.Create(env.user).Error)
	require.NoError(t, testDB.Create(env.other).Error)

	env.branch = &model.Branch{Code: "B-1", Name: "Main"}
	require.NoError(t, testDB.Create(env.branch).Error)

	product := &model.Product{
		Name: "Goods",
		ProductTypes: []model.ProductType{
			{Code: "MUG", Name: "Mug", Price: decimal.NewFromInt(1000), VATRate: decimal.NewFromInt(10)},
			{Code: "SHIRT", Name: "Shirt", Price: decimal.RequireFromString("2500.50"), VATRate: decimal.NewFromInt(10)},
		},
	}
	require.NoError(t, testDB.Create(product).Error)
	env.mug = &product.ProductTypes[0]
	env.shirt = &product.ProductTypes[1]

	users := repository.NewUserRepository(testDB)
	branches := repository.NewBranchRepository(testDB)
	products := repository.NewProductRepository(testDB)
	lookup := NewCatalogLookup(users, branches, products)
	tx := repository.NewTxManager(testDB)
	env.tx = tx
	env.lookup = lookup
	env.productRepo = products

	env.inventoryRepo = repository.NewInventoryRepository(testDB)
	env.promotionRepo = repository.NewPromotionRepository(testDB)
	env.orderRepo = repository.NewOrderRepository(testDB)
	env.cartRepo = repository.NewCartRepository(testDB)

	env.inventory = NewInventoryService(env.inventoryRepo, tx, lookup, lookup, nil)
	env.promotions = NewPromotionService(env.promotionRepo, tx, lookup, PromotionPolicy{
		RequireApproval:    true,
		SystemNamePrefixes: []string{"SYSTEM_"},
		Now:                func() time.Time { return env.now() },
	})
	env.carts = NewCartService(env.cartRepo, lookup, lookup)
	env.orders = env.orderService(env.orderRepo, env.cartRepo, opts...)

	return env
}

// orderService builds an order service over the env's ledgers with the given
// order and cart repositories, so tests can interpose on them.
func (env *testEnv) orderService(
	orders repository.OrderRepository,
	carts repository.CartRepository,
	opts ...OrderOption,
) OrderService {
	return NewOrderService(
		orders, carts, env.productRepo,
		env.inventory, env.promotions, env.lookup, env.lookup, env.tx,
		append([]OrderOption{WithClock(func() time.Time { return env.now() })}, opts...)...,
	)
}

func (env *testEnv) stock(t *testing.T, pt *model.ProductType, quantity int) *model.InventoryRecord {
	t.Helper()
	rec, err := env.inventory.Stock(context.Background(), pt.ID, env.branch.ID, quantity)
	require.NoError(t, err)
	return rec
}

func (env *testEnv) quantity(t *testing.T, pt *model.ProductType) int {
	t.Helper()
	var rec model.InventoryRecord
	require.NoError(t, env.db.Where("product_type_id = ? AND branch_id = ?", pt.ID, env.branch.ID).First(&rec).Error)
	return rec.Quantity
}

func (env *testEnv) promotion(t *testing.T, name string, discount, remaining int, approved bool) *model.Promotion {
	t.Helper()
	promo := &model.Promotion{
		Name:              name,
		Discount:          discount,
		StartDate:         time.Now().Add(-24 * time.Hour),
		EndDate:           time.Now().Add(24 * time.Hour),
		RemainingQuantity: remaining,
		Approved:          approved,
	}
	require.NoError(t, env.db.Create(promo).Error)
	return promo
}

func (env *testEnv) remaining(t *testing.T, promo *model.Promotion) int {
	t.Helper()
	var p model.Promotion
	require.NoError(t, env.db.First(&p, promo.ID).Error)
	return p.RemainingQuantity
}

func (env *testEnv) orderInput(lines ...OrderLine) PlaceOrderInput {
	return PlaceOrderInput{
		UserID:        env.user.ID,
		BranchID:      env.branch.ID,
		Address:       "서울시 강남구 테헤란로 1",
		PaymentMethod: model.PaymentCard,
		Lines:         lines,
	}
}

func uintPtr(v uint) *uint { return &v }
