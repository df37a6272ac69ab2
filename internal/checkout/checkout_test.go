package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/commerce-engine/internal/domain"
)

var region = &domain.Region{ID: "reg_us", CurrencyCode: "USD", Countries: []string{"us"}}

func validAddress() *domain.Address {
	return &domain.Address{
		FirstName: "Grace", LastName: "Hopper", Address1: "1 Navy Way",
		City: "Arlington", PostalCode: "22201", CountryCode: "us",
	}
}

func baseCart() *domain.Cart {
	return &domain.Cart{
		ID:        "cart_1",
		RegionID:  "reg_us",
		LineItems: []domain.LineItem{{ID: "li_1", VariantID: "var_1", Quantity: 1, UnitPrice: 1000}},
	}
}

func TestCurrentStep_Progression(t *testing.T) {
	cart := baseCart()
	totals := domain.Totals{Subtotal: 1000, GrandTotal: 1000}

	assert.Equal(t, StepAddress, CurrentStep(cart, region, totals))

	cart.ShippingAddress = validAddress()
	assert.Equal(t, StepDelivery, CurrentStep(cart, region, totals))

	cart.ShippingMethods = []domain.ShippingMethod{{ID: "sm_1", Amount: 500}}
	assert.Equal(t, StepPayment, CurrentStep(cart, region, totals))

	cart.Payment = &domain.PaymentCollection{Sessions: []domain.PaymentSession{
		{ID: "ps_1", Status: domain.PaymentStatusPending, IsSelected: true},
	}}
	assert.Equal(t, StepReview, CurrentStep(cart, region, totals))

	now := cart.CreatedAt
	cart.CompletedAt = &now
	assert.Equal(t, StepComplete, CurrentStep(cart, region, totals))
}

func TestCurrentStep_EarliestUnsatisfiedWins(t *testing.T) {
	cart := baseCart()
	cart.ShippingMethods = []domain.ShippingMethod{{ID: "sm_1"}}
	cart.Payment = &domain.PaymentCollection{Sessions: []domain.PaymentSession{{ID: "ps_1", IsSelected: true}}}

	assert.Equal(t, StepAddress, CurrentStep(cart, region, domain.Totals{}))

	cart.ShippingAddress = validAddress()
	cart.ShippingAddress.CountryCode = "FR"
	assert.Equal(t, StepAddress, CurrentStep(cart, region, domain.Totals{}), "country outside region")
}

func TestCurrentStep_FailedSessionDoesNotSatisfyPayment(t *testing.T) {
	cart := baseCart()
	cart.ShippingAddress = validAddress()
	cart.ShippingMethods = []domain.ShippingMethod{{ID: "sm_1"}}

	for _, status := range []domain.PaymentStatus{domain.PaymentStatusFailed, domain.PaymentStatusCanceled} {
		cart.Payment = &domain.PaymentCollection{Sessions: []domain.PaymentSession{{ID: "ps_1", Status: status, IsSelected: true}}}
		assert.Equal(t, StepPayment, CurrentStep(cart, region, domain.Totals{GrandTotal: 1000}), string(status))
	}

	cart.Payment = &domain.PaymentCollection{Sessions: []domain.PaymentSession{{ID: "ps_1", Status: domain.PaymentStatusAuthorized}}}
	assert.Equal(t, StepPayment, CurrentStep(cart, region, domain.Totals{GrandTotal: 1000}), "unselected session")
}

func TestCurrentStep_GiftCardsCoverTotal(t *testing.T) {
	cart := baseCart()
	cart.ShippingAddress = validAddress()
	cart.ShippingMethods = []domain.ShippingMethod{{ID: "sm_1"}}

	covered := domain.Totals{Subtotal: 1000, GiftCardTotal: 1000, GrandTotal: 0}
	ev := Evaluate(cart, region, covered)
	assert.Equal(t, StepReview, ev.Current)
	assert.True(t, ev.GiftCardsCover)
	assert.True(t, ev.PaymentReady())

	partial := domain.Totals{Subtotal: 1000, GiftCardTotal: 800, GrandTotal: 200}
	assert.Equal(t, StepPayment, CurrentStep(cart, region, partial))

	free := domain.Totals{}
	assert.Equal(t, StepPayment, CurrentStep(cart, region, free), "zero total without gift cards still needs a session")
}

func TestEvaluate_NilAndEmpty(t *testing.T) {
	assert.Equal(t, StepAddress, CurrentStep(nil, nil, domain.Totals{}))

	empty := &domain.Cart{ID: "cart_2", ShippingAddress: validAddress()}
	assert.Equal(t, StepAddress, CurrentStep(empty, region, domain.Totals{}))
	assert.Equal(t, StepAddress, CurrentStep(baseCart(), nil, domain.Totals{}))
}

func TestStep_CanProceedTo(t *testing.T) {
	assert.True(t, StepPayment.CanProceedTo(StepAddress))
	assert.True(t, StepPayment.CanProceedTo(StepPayment))
	assert.False(t, StepPayment.CanProceedTo(StepReview))
	assert.False(t, StepAddress.CanProceedTo(StepComplete))
	assert.False(t, Step("bogus").CanProceedTo(StepAddress))
	assert.False(t, StepReview.CanProceedTo(Step("bogus")))
	assert.Equal(t, 5, len(Steps()))
	assert.True(t, StepComplete.IsValid())
}
