package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/totals"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// ---------------------------------------------------------------------------
// Mock repository
// ---------------------------------------------------------------------------

type mockDiscountRepository struct {
	mock.Mock
}

func (m *mockDiscountRepository) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	args := m.Called(ctx, code)
	if d := args.Get(0); d != nil {
		return d.(*domain.Discount), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDiscountRepository) IncrementUsage(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func newEvaluator(d *domain.Discount, err error) (*RuleEvaluator, *mockDiscountRepository) {
	repo := &mockDiscountRepository{}
	repo.On("GetByCode", mock.Anything, mock.Anything).Return(d, err)
	return NewRuleEvaluator(repo, func() time.Time { return now }), repo
}

func activeDiscount(kind string, value int64) *domain.Discount {
	return &domain.Discount{
		ID: "disc_1", Code: "SUMMER", Type: kind, Value: value, IsActive: true,
		StartsAt: timePtr(now.Add(-24 * time.Hour)), EndsAt: timePtr(now.Add(24 * time.Hour)),
	}
}

var base = totals.Base{Subtotal: 10000, ShippingTotal: 500}

// ---------------------------------------------------------------------------
// Amounts
// ---------------------------------------------------------------------------

func TestEvaluate_Amounts(t *testing.T) {
	tests := []struct {
		name     string
		discount *domain.Discount
		want     int64
	}{
		{"percentage", activeDiscount(domain.DiscountTypePercentage, 1000), 1000},
		{"percentage capped", func() *domain.Discount {
			d := activeDiscount(domain.DiscountTypePercentage, 5000)
			d.MaxAmount = 2500
			return d
		}(), 2500},
		{"fixed", activeDiscount(domain.DiscountTypeFixedAmount, 1500), 1500},
		{"fixed above subtotal", activeDiscount(domain.DiscountTypeFixedAmount, 20000), 10000},
		{"free shipping", activeDiscount(domain.DiscountTypeFreeShipping, 0), 500},
		{"unknown type", activeDiscount("buy_x_get_y", 100), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, repo := newEvaluator(tt.discount, nil)

			got, err := e.Evaluate(context.Background(), " summer ", &domain.Cart{}, base)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			repo.AssertCalled(t, "GetByCode", mock.Anything, "SUMMER")
		})
	}
}

// ---------------------------------------------------------------------------
// Validity
// ---------------------------------------------------------------------------

func TestEvaluate_Inapplicable(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *domain.Discount)
		wantMsg string
	}{
		{"inactive", func(d *domain.Discount) { d.IsActive = false }, "not active"},
		{"not started", func(d *domain.Discount) { d.StartsAt = timePtr(now.Add(time.Hour)) }, "not started"},
		{"expired", func(d *domain.Discount) { d.EndsAt = timePtr(now.Add(-time.Hour)) }, "expired"},
		{"usage limit", func(d *domain.Discount) { d.UsageLimit = 3; d.UsageCount = 3 }, "usage limit"},
		{"minimum order", func(d *domain.Discount) { d.MinOrderAmount = 20000 }, "minimum order amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := activeDiscount(domain.DiscountTypePercentage, 1000)
			tt.mutate(d)
			e, _ := newEvaluator(d, nil)

			_, err := e.Evaluate(context.Background(), "SUMMER", &domain.Cart{}, base)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestEvaluate_UnknownCodeIsInvalidInput(t *testing.T) {
	e, _ := newEvaluator(nil, apperrors.NotFound("discount", "NOPE"))

	_, err := e.Evaluate(context.Background(), "nope", &domain.Cart{}, base)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestEvaluate_EmptyCode(t *testing.T) {
	repo := &mockDiscountRepository{}
	e := NewRuleEvaluator(repo, nil)

	_, err := e.Evaluate(context.Background(), "  ", &domain.Cart{}, base)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	repo.AssertNotCalled(t, "GetByCode", mock.Anything, mock.Anything)
}

func TestEvaluate_StoreFailurePropagates(t *testing.T) {
	e, _ := newEvaluator(nil, apperrors.Upstream(errors.New("pool closed")))

	_, err := e.Evaluate(context.Background(), "SUMMER", &domain.Cart{}, base)

	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidInput)
}
