package service

import (
	"context"
	"testing"

	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartService_GetOrCreateCart(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()

	first, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)
	second, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = env.carts.GetOrCreateCart(ctx, 9999)
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestCartService_AddLineMergesSameIdentity(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	cart, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)

	first, err := env.carts.AddLine(ctx, cart, env.mug.ID, 2, "")
	require.NoError(t, err)
	merged, err := env.carts.AddLine(ctx, cart, env.mug.ID, 3, "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 5, merged.Quantity)

	engraved, err := env.carts.AddLine(ctx, cart, env.mug.ID, 1, "ENGRAVED")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, engraved.ID)

	lines, err := env.carts.GetLines(ctx, cart, env.user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "MUG", lines[0].ProductType.Code)
}

func TestCartService_AddLineValidation(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	cart, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)

	_, err = env.carts.AddLine(ctx, cart, env.mug.ID, 0, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	_, err = env.carts.AddLine(ctx, cart, 9999, 1, "")
	assert.ErrorIs(t, err, apperrors.ErrProductTypeNotFound)

	_, err = env.carts.AddLine(ctx, nil, env.mug.ID, 1, "")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestCartService_OwnershipIsEnforced(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	cart, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)
	line, err := env.carts.AddLine(ctx, cart, env.mug.ID, 1, "")
	require.NoError(t, err)

	_, err = env.carts.GetLines(ctx, cart, env.other.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = env.carts.UpdateQuantity(ctx, env.other.ID, line.ID, 4)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	assert.ErrorIs(t, env.carts.RemoveLine(ctx, env.other.ID, line.ID), apperrors.ErrForbidden)

	lines, err := env.carts.GetLines(ctx, cart, env.user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestCartService_UpdateRemoveClear(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	cart, err := env.carts.GetOrCreateCart(ctx, env.user.ID)
	require.NoError(t, err)
	mugLine, err := env.carts.AddLine(ctx, cart, env.mug.ID, 1, "")
	require.NoError(t, err)
	_, err = env.carts.AddLine(ctx, cart, env.shirt.ID, 1, "")
	require.NoError(t, err)

	updated, err := env.carts.UpdateQuantity(ctx, env.user.ID, mugLine.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Quantity)

	_, err = env.carts.UpdateQuantity(ctx, env.user.ID, mugLine.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuantity)

	require.NoError(t, env.carts.RemoveLine(ctx, env.user.ID, mugLine.ID))
	assert.ErrorIs(t, env.carts.RemoveLine(ctx, env.user.ID, mugLine.ID), apperrors.ErrCartLineNotFound)

	require.NoError(t, env.carts.ClearCart(ctx, env.user.ID))
	lines, err := env.carts.GetLines(ctx, cart, env.user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	assert.NoError(t, env.carts.ClearCart(ctx, env.other.ID))
}
