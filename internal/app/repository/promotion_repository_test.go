package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ikkim/storefront-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPromotion(t *testing.T, f *fixture, remaining int) *model.Promotion {
	t.Helper()
	now := time.Now()
	promo := &model.Promotion{
		Name:              "Spring",
		Discount:          10,
		StartDate:         now.Add(-time.Hour),
		EndDate:           now.Add(time.Hour),
		RemainingQuantity: remaining,
		Approved:          true,
	}
	require.NoError(t, NewPromotionRepository(f.db).Create(context.Background(), promo))
	return promo
}

func TestPromotionRepository_DecrementStopsAtZero(t *testing.T) {
	f := setupRepoTest(t)
	promo := createPromotion(t, f, 1)
	repo := NewPromotionRepository(f.db)
	ctx := context.Background()

	rows, err := repo.Decrement(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.Decrement(ctx, promo.ID)
	require.NoError(t, err)
	assert.Zero(t, rows)

	_, err = repo.Increment(ctx, promo.ID)
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RemainingQuantity)
}

func TestPromotionRepository_RedemptionPerUserIsUnique(t *testing.T) {
	f := setupRepoTest(t)
	promo := createPromotion(t, f, 5)
	repo := NewPromotionRepository(f.db)
	ctx := context.Background()

	first := &model.UserPromotion{UserID: f.user.ID, PromotionID: promo.ID, Status: model.RedemptionPending}
	require.NoError(t, repo.CreateRedemption(ctx, first))

	err := repo.CreateRedemption(ctx, &model.UserPromotion{UserID: f.user.ID, PromotionID: promo.ID, Status: model.RedemptionPending})
	assert.Error(t, err)

	orderID := uint(9)
	require.NoError(t, repo.UpdateRedemption(ctx, first.ID, model.RedemptionUsed, &orderID))

	got, err := repo.FindRedemptionByOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, model.RedemptionUsed, got.Status)

	list, err := repo.ListRedemptionsByUser(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Spring", list[0].Promotion.Name)
}
