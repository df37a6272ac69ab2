// Package checkout derives the checkout step of a cart from its shape.
// Nothing here mutates the cart; the complete step is entered by order
// creation elsewhere.
package checkout

import "github.com/utafrali/commerce-engine/internal/domain"

// Step is a checkout stage.
type Step string

// Checkout steps in required order.
const (
	StepAddress  Step = "address"
	StepDelivery Step = "delivery"
	StepPayment  Step = "payment"
	StepReview   Step = "review"
	StepComplete Step = "complete"
)

var steps = []Step{StepAddress, StepDelivery, StepPayment, StepReview, StepComplete}

// Steps returns the steps in order.
func Steps() []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// Index returns the position of the step, or -1 when unknown.
func (s Step) Index() int {
	for i, st := range steps {
		if st == s {
			return i
		}
	}
	return -1
}

// IsValid reports whether s is a known step.
func (s Step) IsValid() bool { return s.Index() >= 0 }

// CanProceedTo reports whether a buyer whose current step is s may act on
// target. Steps at or before the current one are open; later ones are gated.
func (s Step) CanProceedTo(target Step) bool {
	cur, tgt := s.Index(), target.Index()
	if cur < 0 || tgt < 0 {
		return false
	}
	return tgt <= cur
}

// Evaluation reports every gate along with the resulting current step.
type Evaluation struct {
	Current           Step `json:"current"`
	HasItems          bool `json:"has_items"`
	AddressValid      bool `json:"address_valid"`
	HasShippingMethod bool `json:"has_shipping_method"`
	PaymentSelected   bool `json:"payment_selected"`
	GiftCardsCover    bool `json:"gift_cards_cover"`
	Completed         bool `json:"completed"`
}

// PaymentReady reports whether the payment requirement of the review step
// is met, regardless of earlier steps.
func (e Evaluation) PaymentReady() bool {
	return e.PaymentSelected || e.GiftCardsCover
}

// Evaluate derives the earliest unsatisfied step. It never panics; a nil or
// empty cart evaluates to the address step.
func Evaluate(cart *domain.Cart, region *domain.Region, t domain.Totals) Evaluation {
	var ev Evaluation
	if cart == nil {
		ev.Current = StepAddress
		return ev
	}

	ev.Completed = cart.IsCompleted()
	ev.HasItems = len(cart.LineItems) > 0
	ev.AddressValid = cart.ShippingAddress.ValidFor(region)
	ev.HasShippingMethod = len(cart.ShippingMethods) > 0
	ev.PaymentSelected = PaymentUsable(cart.Payment.Selected())
	ev.GiftCardsCover = t.GiftCardTotal > 0 && t.GrandTotal == 0

	switch {
	case ev.Completed:
		ev.Current = StepComplete
	case !ev.HasItems || !ev.AddressValid:
		ev.Current = StepAddress
	case !ev.HasShippingMethod:
		ev.Current = StepDelivery
	case !ev.PaymentReady():
		ev.Current = StepPayment
	default:
		ev.Current = StepReview
	}
	return ev
}

// CurrentStep returns only the current step of Evaluate.
func CurrentStep(cart *domain.Cart, region *domain.Region, t domain.Totals) Step {
	return Evaluate(cart, region, t).Current
}

// PaymentUsable reports whether a selected session can carry the payment
// step: it exists and has not failed or been canceled.
func PaymentUsable(s *domain.PaymentSession) bool {
	return s != nil && !s.Status.IsTerminal()
}
