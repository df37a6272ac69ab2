package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commerce-engine/internal/pricing"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

func TestPriceService_Resolve(t *testing.T) {
	f := newFixture(t)

	prices, err := f.priceSvc.Resolve(context.Background(), ResolvePricesInput{
		VariantIDs: []string{"var_1", "var_missing", "var_eur"},
		RegionID:   "reg_us",
		Quantity:   5,
	})
	require.NoError(t, err)
	require.Len(t, prices, 3)

	assert.Equal(t, "var_1", prices[0].VariantID)
	assert.True(t, prices[0].Available)
	assert.Equal(t, int64(800), prices[0].CalculatedAmount)
	assert.Equal(t, int64(1000), prices[0].OriginalAmount)
	assert.True(t, prices[0].IsSale)
	assert.Equal(t, 20, prices[0].PercentOff)
	assert.Equal(t, "8.00 USD", prices[0].Display)

	for _, p := range prices[1:] {
		assert.False(t, p.Available)
		assert.Equal(t, pricing.Unavailable, p.Display)
	}
}

func TestPriceService_Resolve_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.priceSvc.Resolve(ctx, ResolvePricesInput{RegionID: "reg_us"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.priceSvc.Resolve(ctx, ResolvePricesInput{VariantIDs: []string{"var_1"}, RegionID: "reg_mars"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
