package repository

import (
	"testing"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/ikkim/storefront-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db          *gorm.DB
	user        *model.User
	branch      *model.Branch
	productType *model.ProductType
}

func setupRepoTest(t *testing.T) *fixture {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	user := &model.User{Email: "buyer@example.com", Name: "Buyer", Role: model.RoleUser}
	require.NoError(t, testDB.Create(user).Error)

	branch := &model.Branch{Code: "B-1", Name: "Main"}
	require.NoError(t, testDB.Create(branch).Error)

	product := &model.Product{
		Name: "Mug",
		ProductTypes: []model.ProductType{
			{Code: "MUG-1", Name: "Mug", Price: decimal.NewFromInt(1000), VATRate: decimal.NewFromInt(10)},
		},
	}
	require.NoError(t, testDB.Create(product).Error)

	return &fixture{db: testDB, user: user, branch: branch, productType: &product.ProductTypes[0]}
}

func (f *fixture) stock(t *testing.T, quantity int) *model.InventoryRecord {
	t.Helper()
	rec := &model.InventoryRecord{ProductTypeID: f.productType.ID, BranchID: f.branch.ID, Quantity: quantity}
	require.NoError(t, f.db.Create(rec).Error)
	return rec
}
