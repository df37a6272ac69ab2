package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commerce-engine/internal/checkout"
	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

func TestIngestOrder_CompletesCartOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.readyForPayment(t).Cart.ID

	order := &domain.Order{
		ID: "order_1", CartID: cartID, Email: "Guest@Example.com", CreatedAt: fixedNow,
		Totals: domain.Totals{Discounts: []domain.DiscountLine{{Code: "save10", Amount: 200}}},
	}
	require.NoError(t, f.orderSvc.IngestOrder(ctx, order))
	require.NoError(t, f.orderSvc.IngestOrder(ctx, order))

	view, err := f.cartSvc.GetCart(ctx, cartID, nil)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepComplete, view.Checkout.Current)

	stored, err := f.orderSvc.GetOrder(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", stored.Email)

	d, err := f.discounts.GetByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, d.UsageCount)
}

func TestIngestOrder_UnknownCartStillStoresOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orderSvc.IngestOrder(ctx, &domain.Order{ID: "order_1", CartID: "cart_gone"}))

	_, err := f.orderSvc.GetOrder(ctx, "order_1")
	assert.NoError(t, err)
}

func TestIngestOrder_CartOfAnotherOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1).Cart.ID

	require.NoError(t, f.orderSvc.IngestOrder(ctx, &domain.Order{ID: "order_1", CartID: cartID}))
	err := f.orderSvc.IngestOrder(ctx, &domain.Order{ID: "order_2", CartID: cartID})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestIngestOrder_Validation(t *testing.T) {
	f := newFixture(t)
	err := f.orderSvc.IngestOrder(context.Background(), &domain.Order{ID: "order_1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.orderSvc.GetOrder(context.Background(), "order_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
