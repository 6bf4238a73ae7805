package controller

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/app/repository"
	"github.com/ikkim/storefront-backend/internal/app/service"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type controllerEnv struct {
	db     *gorm.DB
	router *gin.Engine
	user   *model.User
	other  *model.User
	branch *model.Branch
	mug    *model.ProductType

	inventory service.InventoryService
}

// setupControllerTest wires real services over SQLite. Requests carry the
// acting user in the X-Test-User header instead of a JWT.
func setupControllerTest(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	env := &controllerEnv{db: testDB}
	env.user = &model.User{Email: "buyer@example.com", Name: "Buyer", Role: model.RoleUser}
	env.other = &model.User{Email: "other@example.com", Name: "Other", Role: model.RoleUser}
	require.NoError(t, testDB.Create(env.user).Error)
	require.NoError(t, testDB.Create(env.other).Error)
	env.branch = &model.Branch{Code: "B-1", Name: "Main"}
	require.NoError(t, testDB.Create(env.branch).Error)

	product := &model.Product{
		Name: "Mug",
		ProductTypes: []model.ProductType{
			{Code: "MUG", Name: "Mug", Price: decimal.NewFromInt(1000), VATRate: decimal.NewFromInt(10)},
		},
	}
	require.NoError(t, testDB.Create(product).Error)
	env.mug = &product.ProductTypes[0]

	productRepo := repository.NewProductRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	lookup := service.NewCatalogLookup(repository.NewUserRepository(testDB), repository.NewBranchRepository(testDB), productRepo)
	tx := repository.NewTxManager(testDB)

	env.inventory = service.NewInventoryService(repository.NewInventoryRepository(testDB), tx, lookup, lookup, nil)
	promotions := service.NewPromotionService(repository.NewPromotionRepository(testDB), tx, lookup, service.PromotionPolicy{
		RequireApproval:    true,
		SystemNamePrefixes: []string{"SYSTEM_"},
	})
	carts := service.NewCartService(cartRepo, lookup, lookup)
	orders := service.NewOrderService(repository.NewOrderRepository(testDB), cartRepo, productRepo, env.inventory, promotions, lookup, lookup, tx)

	cartCtrl := NewCartController(carts)
	orderCtrl := NewOrderController(orders)
	promoCtrl := NewPromotionController(promotions)
	invCtrl := NewInventoryController(env.inventory)

	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	api := r.Group("/api/v1", func(c *gin.Context) {
		var id uint
		if err := json.Unmarshal([]byte(c.GetHeader("X-Test-User")), &id); err == nil && id > 0 {
			c.Set(middleware.UserIDKey, id)
		}
		c.Next()
	})
	api.GET("/cart", cartCtrl.GetCart)
	api.POST("/cart/lines", cartCtrl.AddLine)
	api.PUT("/cart/lines/:id", cartCtrl.UpdateLine)
	api.DELETE("/cart/lines/:id", cartCtrl.RemoveLine)
	api.DELETE("/cart", cartCtrl.ClearCart)
	api.POST("/orders", orderCtrl.CreateOrder)
	api.POST("/orders/checkout", orderCtrl.Checkout)
	api.GET("/orders", orderCtrl.GetOrders)
	api.GET("/orders/:id", orderCtrl.GetOrderByID)
	api.POST("/orders/:id/cancel", orderCtrl.CancelOrder)
	api.PUT("/orders/:id/status", orderCtrl.UpdateOrderStatus)
	api.GET("/promotions/mine", promoCtrl.ListMine)
	api.GET("/promotions/:id", promoCtrl.GetPromotion)
	api.POST("/promotions/:id/claim", promoCtrl.Claim)
	api.GET("/inventory/branches/:branch_id", invCtrl.ListByBranch)
	api.GET("/inventory/branches/:branch_id/product-types/:product_type_id", invCtrl.GetRecord)
	api.POST("/inventory", invCtrl.Stock)
	api.POST("/inventory/adjust", invCtrl.Adjust)
	env.router = r

	return env
}

func (env *controllerEnv) do(t *testing.T, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		b, _ := json.Marshal(userID)
		req.Header.Set("X-Test-User", string(b))
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *controllerEnv) promotion(t *testing.T, remaining int) *model.Promotion {
	t.Helper()
	promo := &model.Promotion{
		Name:              "SPRING",
		Discount:          10,
		StartDate:         time.Now().Add(-time.Hour),
		EndDate:           time.Now().Add(time.Hour),
		RemainingQuantity: remaining,
		Approved:          true,
	}
	require.NoError(t, env.db.Create(promo).Error)
	return promo
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
