package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/commerce-engine/internal/checkout"
	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	"github.com/utafrali/commerce-engine/pkg/lock"
)

func requireState(t *testing.T, err error, want string) {
	t.Helper()
	require.Error(t, err)
	state, ok := apperrors.ConflictState(err)
	require.True(t, ok, "expected a state conflict, got %v", err)
	assert.Equal(t, want, state)
}

// --- CreateCart ---

func TestCreateCart_DefaultsToRegionCurrency(t *testing.T) {
	f := newFixture(t)
	customer := &domain.Customer{ID: "cus_1", Email: "Ada@Example.com"}

	view, err := f.cartSvc.CreateCart(context.Background(), CreateCartInput{RegionID: "reg_us"}, customer)
	require.NoError(t, err)

	assert.Equal(t, "USD", view.Cart.CurrencyCode)
	assert.Equal(t, "cus_1", view.Cart.CustomerID)
	assert.Equal(t, "ada@example.com", view.Cart.Email)
	assert.Equal(t, fixedNow.Add(f.cartSvc.cartTTL), view.Cart.ExpiresAt)
	assert.Equal(t, checkout.StepAddress, view.Checkout.Current)
	assert.False(t, view.CustomerMismatch)
}

func TestCreateCart_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cartSvc.CreateCart(ctx, CreateCartInput{RegionID: "reg_us", CurrencyCode: "EUR"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.cartSvc.CreateCart(ctx, CreateCartInput{RegionID: "reg_mars"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.cartSvc.CreateCart(ctx, CreateCartInput{}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- Line items ---

func TestAddLineItem_MergesAndReprices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.newCart(t, 3)

	view, err := f.cartSvc.AddLineItem(ctx, view.Cart.ID, AddLineItemInput{VariantID: "var_1", Quantity: 2})
	require.NoError(t, err)

	require.Len(t, view.Cart.LineItems, 1)
	li := view.Cart.LineItems[0]
	assert.Equal(t, 5, li.Quantity)
	assert.Equal(t, int64(800), li.UnitPrice)
	assert.Equal(t, int64(1000), li.OriginalUnitPrice)
	assert.Equal(t, "price_2", li.PriceID)
	assert.Equal(t, int64(4000), view.Totals.Subtotal)
	assert.Equal(t, 2, view.Cart.Version)
}

func TestAddLineItem_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 0).Cart.ID

	tests := []struct {
		name  string
		input AddLineItemInput
		want  error
	}{
		{"missing variant", AddLineItemInput{Quantity: 1}, apperrors.ErrInvalidInput},
		{"zero quantity", AddLineItemInput{VariantID: "var_1"}, apperrors.ErrInvalidInput},
		{"too many", AddLineItemInput{VariantID: "var_1", Quantity: domain.MaxQuantityPerItem + 1}, apperrors.ErrInvalidInput},
		{"unknown variant", AddLineItemInput{VariantID: "var_missing", Quantity: 1}, apperrors.ErrNotFound},
		{"no price in currency", AddLineItemInput{VariantID: "var_eur", Quantity: 1}, apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.cartSvc.AddLineItem(ctx, cartID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	view, err := f.cartSvc.GetCart(ctx, cartID, nil)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.LineItems)
	assert.Equal(t, 0, view.Cart.Version)
}

func TestAddLineItem_CombinedQuantityLimit(t *testing.T) {
	f := newFixture(t)
	view := f.newCart(t, 60)

	_, err := f.cartSvc.AddLineItem(context.Background(), view.Cart.ID, AddLineItemInput{VariantID: "var_1", Quantity: 41})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddLineItem_ConcurrentAddsAreLinearized(t *testing.T) {
	f := newFixture(t)
	cartID := f.newCart(t, 0).Cart.ID

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.cartSvc.AddLineItem(context.Background(), cartID, AddLineItemInput{VariantID: "var_1", Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	view, err := f.cartSvc.GetCart(context.Background(), cartID, nil)
	require.NoError(t, err)
	require.Len(t, view.Cart.LineItems, 1)
	assert.Equal(t, 10, view.Cart.LineItems[0].Quantity)
	assert.Equal(t, 10, view.Cart.Version)
}

func TestUpdateLineItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.newCart(t, 2)
	lineID := view.Cart.LineItems[0].ID

	view, err := f.cartSvc.UpdateLineItem(ctx, view.Cart.ID, lineID, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(800), view.Cart.LineItems[0].UnitPrice)
	assert.Equal(t, int64(4800), view.Totals.Subtotal)

	_, err = f.cartSvc.UpdateLineItem(ctx, view.Cart.ID, lineID, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.cartSvc.UpdateLineItem(ctx, view.Cart.ID, "li_missing", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveLineItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.newCart(t, 2)

	view, err := f.cartSvc.RemoveLineItem(ctx, view.Cart.ID, view.Cart.LineItems[0].ID)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.LineItems)
	assert.Equal(t, int64(0), view.Totals.GrandTotal)

	_, err = f.cartSvc.RemoveLineItem(ctx, view.Cart.ID, "li_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Checkout progression ---

func TestCheckoutProgression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.newCart(t, 2)
	cartID := view.Cart.ID
	assert.Equal(t, checkout.StepAddress, view.Checkout.Current)

	_, err := f.cartSvc.AddShippingMethod(ctx, cartID, "so_std")
	requireState(t, err, string(checkout.StepAddress))

	bad := validAddress()
	bad.CountryCode = "DE"
	_, err = f.cartSvc.SetShippingAddress(ctx, cartID, bad)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	incomplete := validAddress()
	incomplete.City = ""
	_, err = f.cartSvc.SetShippingAddress(ctx, cartID, incomplete)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	view, err = f.cartSvc.SetShippingAddress(ctx, cartID, validAddress())
	require.NoError(t, err)
	assert.Equal(t, checkout.StepDelivery, view.Checkout.Current)

	_, err = f.cartSvc.AddShippingMethod(ctx, cartID, "so_eu")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	view, err = f.cartSvc.AddShippingMethod(ctx, cartID, "so_std")
	require.NoError(t, err)
	assert.Equal(t, checkout.StepPayment, view.Checkout.Current)
	assert.Equal(t, int64(500), view.Totals.ShippingTotal)
	// 10% tax on 2000 + 500.
	assert.Equal(t, int64(250), view.Totals.TaxTotal)
	assert.Equal(t, int64(2750), view.Totals.GrandTotal)

	again, err := f.cartSvc.AddShippingMethod(ctx, cartID, "so_std")
	require.NoError(t, err)
	assert.Len(t, again.Cart.ShippingMethods, 1)
	assert.Equal(t, view.Cart.Version, again.Cart.Version)

	view, err = f.cartSvc.RemoveShippingMethod(ctx, cartID, "so_std")
	require.NoError(t, err)
	assert.Equal(t, checkout.StepDelivery, view.Checkout.Current)
}

// --- Discounts and gift cards ---

func TestDiscountsAndGiftCards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.readyForPayment(t).Cart.ID

	_, err := f.cartSvc.ApplyDiscount(ctx, cartID, "NOPE")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.cartSvc.ApplyDiscount(ctx, cartID, "bigspender")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	view, err := f.cartSvc.ApplyDiscount(ctx, cartID, "save10")
	require.NoError(t, err)
	assert.Equal(t, []string{"SAVE10"}, view.Cart.DiscountCodes)
	assert.Equal(t, int64(200), view.Totals.DiscountTotal)

	_, err = f.cartSvc.ApplyGiftCard(ctx, cartID, "GC-EUR")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = f.cartSvc.ApplyGiftCard(ctx, cartID, "GC-NONE")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	view, err = f.cartSvc.ApplyGiftCard(ctx, cartID, "GC-SMALL")
	require.NoError(t, err)

	assert.Equal(t, int64(2000), view.Totals.Subtotal)
	assert.Equal(t, int64(1500), view.Totals.GiftCardTotal)
	// Tax is 10% of 2000 - 200 + 500.
	assert.Equal(t, int64(230), view.Totals.TaxTotal)
	assert.Equal(t, int64(2000-200-1500+500+230), view.Totals.GrandTotal)

	view, err = f.cartSvc.RemoveDiscount(ctx, cartID, "save10")
	require.NoError(t, err)
	assert.Zero(t, view.Totals.DiscountTotal)

	_, err = f.cartSvc.RemoveDiscount(ctx, cartID, "SAVE10")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	view, err = f.cartSvc.RemoveGiftCard(ctx, cartID, "gc-small")
	require.NoError(t, err)
	assert.Zero(t, view.Totals.GiftCardTotal)
}

func TestApplyDiscount_Twice_IsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 2).Cart.ID

	first, err := f.cartSvc.ApplyDiscount(ctx, cartID, "SAVE10")
	require.NoError(t, err)
	second, err := f.cartSvc.ApplyDiscount(ctx, cartID, "SAVE10")
	require.NoError(t, err)

	assert.Equal(t, first.Cart.Version, second.Cart.Version)
	assert.Equal(t, first.Totals, second.Totals)
}

// --- Payment sessions ---

func TestPaymentSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	early := f.newCart(t, 1)
	_, err := f.cartSvc.CreatePaymentSession(ctx, early.Cart.ID, CreatePaymentSessionInput{ProviderCode: "stripe"})
	requireState(t, err, string(checkout.StepAddress))

	view := f.readyForPayment(t)
	cartID := view.Cart.ID

	first, err := f.cartSvc.CreatePaymentSession(ctx, cartID, CreatePaymentSessionInput{ProviderCode: "Stripe", ProviderReference: "pi_1"})
	require.NoError(t, err)
	assert.True(t, first.IsSelected)
	assert.Equal(t, "stripe", first.ProviderCode)
	assert.Equal(t, view.Totals.GrandTotal, first.Amount)
	assert.Equal(t, domain.PaymentStatusPending, first.Status)

	second, err := f.cartSvc.CreatePaymentSession(ctx, cartID, CreatePaymentSessionInput{ProviderCode: "manual"})
	require.NoError(t, err)
	assert.False(t, second.IsSelected)

	view, err = f.cartSvc.GetCart(ctx, cartID, nil)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepReview, view.Checkout.Current)

	view, err = f.cartSvc.SelectPaymentSession(ctx, cartID, second.ID)
	require.NoError(t, err)
	require.NotNil(t, view.Cart.Payment.Selected())
	assert.Equal(t, second.ID, view.Cart.Payment.Selected().ID)

	again, err := f.cartSvc.SelectPaymentSession(ctx, cartID, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, again.Cart.Payment.Selected().ID)

	require.NoError(t, f.payments.UpdateStatus(ctx, first.ID, domain.PaymentStatusFailed, fixedNow))
	_, err = f.cartSvc.SelectPaymentSession(ctx, cartID, first.ID)
	requireState(t, err, string(domain.PaymentStatusFailed))

	_, err = f.cartSvc.SelectPaymentSession(ctx, early.Cart.ID, second.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- Customer association ---

func TestAssociateCustomer_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1).Cart.ID
	customer := &domain.Customer{ID: "cus_1", Email: "ada@example.com"}

	once, err := f.cartSvc.AssociateCustomer(ctx, cartID, customer)
	require.NoError(t, err)
	twice, err := f.cartSvc.AssociateCustomer(ctx, cartID, customer)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, "cus_1", twice.CustomerID)
	assert.Equal(t, "guest@example.com", twice.Email)
}

func TestAssociateCustomer_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1).Cart.ID

	_, err := f.cartSvc.AssociateCustomer(ctx, cartID, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.cartSvc.AssociateCustomer(ctx, cartID, &domain.Customer{ID: "cus_1"})
	require.NoError(t, err)

	_, err = f.cartSvc.AssociateCustomer(ctx, cartID, &domain.Customer{ID: "cus_2"})
	requireState(t, err, "associated")

	_, err = f.cartSvc.AssociateCustomer(ctx, "cart_missing", &domain.Customer{ID: "cus_1"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// flakyLocker fails the first failures acquisitions.
type flakyLocker struct {
	lock.Locker
	mu       sync.Mutex
	failures int
	calls    int
}

func (l *flakyLocker) Acquire(ctx context.Context, key string) (lock.Release, error) {
	l.mu.Lock()
	l.calls++
	fail := l.calls <= l.failures
	l.mu.Unlock()
	if fail {
		return nil, errors.New("redis: connection refused")
	}
	return l.Locker.Acquire(ctx, key)
}

func TestReconcileCustomer_RetriesUpstreamFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1).Cart.ID
	customer := &domain.Customer{ID: "cus_1", Email: "ada@example.com"}

	view, err := f.cartSvc.GetCart(ctx, cartID, customer)
	require.NoError(t, err)
	assert.True(t, view.CustomerMismatch)

	flaky := &flakyLocker{Locker: f.locker, failures: 2}
	f.cartSvc.locker = flaky

	cart, err := f.cartSvc.ReconcileCustomer(ctx, cartID, customer)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cart.CustomerID)
	assert.Equal(t, 3, flaky.calls)

	view, err = f.cartSvc.GetCart(ctx, cartID, customer)
	require.NoError(t, err)
	assert.False(t, view.CustomerMismatch)
}

func TestReconcileCustomer_DoesNotRetryConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1).Cart.ID
	_, err := f.cartSvc.AssociateCustomer(ctx, cartID, &domain.Customer{ID: "cus_1"})
	require.NoError(t, err)

	_, err = f.cartSvc.ReconcileCustomer(ctx, cartID, &domain.Customer{ID: "cus_2"})
	requireState(t, err, "associated")

	cart, err := f.cartSvc.ReconcileCustomer(ctx, cartID, nil)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", cart.CustomerID)
}

func TestReconcileCustomer_GivesUpAfterMaxTries(t *testing.T) {
	f := newFixture(t)
	cartID := f.newCart(t, 1).Cart.ID
	f.cartSvc.locker = &flakyLocker{Locker: f.locker, failures: 100}

	_, err := f.cartSvc.ReconcileCustomer(context.Background(), cartID, &domain.Customer{ID: "cus_1"})
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

// --- Completion ---

func TestMarkCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.newCart(t, 1).Cart.ID

	require.NoError(t, f.cartSvc.MarkCompleted(ctx, cartID, "order_1", fixedNow))
	require.NoError(t, f.cartSvc.MarkCompleted(ctx, cartID, "order_1", fixedNow))

	err := f.cartSvc.MarkCompleted(ctx, cartID, "order_2", fixedNow)
	requireState(t, err, "completed")

	view, err := f.cartSvc.GetCart(ctx, cartID, nil)
	require.NoError(t, err)
	assert.Equal(t, checkout.StepComplete, view.Checkout.Current)
	assert.Equal(t, "order_1", view.Cart.OrderID)

	_, err = f.cartSvc.AddLineItem(ctx, cartID, AddLineItemInput{VariantID: "var_1", Quantity: 1})
	requireState(t, err, "completed")
}
