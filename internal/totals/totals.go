// Package totals aggregates a cart into a consistent totals snapshot.
package totals

import (
	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/pricing"
)

// TaxFunc computes the tax owed on a taxable amount for a region. It must be
// pure. Negative results are treated as zero.
type TaxFunc func(region *domain.Region, taxable int64) int64

// Input is everything a totals computation reads. Nothing in it is mutated.
type Input struct {
	Cart   *domain.Cart
	Region *domain.Region
	// Variants keyed by id, used to re-resolve line prices.
	Variants map[string]*domain.ProductVariant
	// Discounts are contributions evaluated outside the aggregator.
	Discounts []domain.DiscountLine
	// GiftCards in application order; balances are drawn first-applied-first.
	GiftCards []domain.GiftCard
	Tax       TaxFunc
}

// Base is the part of the totals discount rules are evaluated against.
type Base struct {
	Subtotal      int64
	ShippingTotal int64
}

// ComputeBase prices the lines and shipping without discounts, gift cards or tax.
func ComputeBase(in Input) Base {
	lines, _ := priceLines(in)
	var b Base
	for _, l := range lines {
		b.Subtotal += l.Total
	}
	b.ShippingTotal = shippingTotal(in.Cart)
	return b
}

// Compute performs a full recomputation of the cart totals.
func Compute(in Input) domain.Totals {
	var t domain.Totals
	if in.Cart == nil {
		return t
	}

	t.Lines, t.UnpricedLineItems = priceLines(in)
	for _, l := range t.Lines {
		t.Subtotal += l.Total
	}

	for _, d := range in.Discounts {
		if d.Amount <= 0 {
			continue
		}
		amount := min(d.Amount, t.Subtotal-t.DiscountTotal)
		if amount <= 0 {
			continue
		}
		t.DiscountTotal += amount
		t.Discounts = append(t.Discounts, domain.DiscountLine{Code: d.Code, Amount: amount})
	}

	remaining := t.Subtotal - t.DiscountTotal
	for _, gc := range in.GiftCards {
		if remaining <= 0 {
			break
		}
		if gc.Balance <= 0 {
			continue
		}
		draw := min(gc.Balance, remaining)
		remaining -= draw
		t.GiftCardTotal += draw
		t.GiftCards = append(t.GiftCards, domain.GiftCardDraw{Code: gc.Code, Amount: draw})
	}

	t.ShippingTotal = shippingTotal(in.Cart)

	if in.Tax != nil {
		taxable := t.Subtotal - t.DiscountTotal + t.ShippingTotal
		if tax := in.Tax(in.Region, taxable); tax > 0 {
			t.TaxTotal = tax
		}
	}

	t.GrandTotal = max(t.Subtotal-t.DiscountTotal-t.GiftCardTotal+t.ShippingTotal+t.TaxTotal, 0)
	return t
}

// priceLines re-resolves each line at its quantity. Lines whose variant or
// price is unavailable keep their snapshot price and are reported back.
func priceLines(in Input) ([]domain.LineTotal, []string) {
	if in.Cart == nil {
		return nil, nil
	}

	regionID := in.Cart.RegionID
	lines := make([]domain.LineTotal, 0, len(in.Cart.LineItems))
	var unpriced []string

	for _, li := range in.Cart.LineItems {
		if li.Quantity <= 0 {
			continue
		}
		unit, original := li.UnitPrice, li.OriginalUnitPrice
		res := pricing.Resolve(in.Variants[li.VariantID], pricing.Context{
			RegionID: regionID,
			Currency: in.Cart.CurrencyCode,
			Quantity: li.Quantity,
		})
		if res.Available {
			unit, original = res.CalculatedAmount, res.OriginalAmount
		} else {
			unpriced = append(unpriced, li.ID)
		}
		if original < unit {
			original = unit
		}

		lines = append(lines, domain.LineTotal{
			LineItemID:        li.ID,
			UnitPrice:         unit,
			OriginalUnitPrice: original,
			Quantity:          li.Quantity,
			Total:             unit * int64(li.Quantity),
			PriceChanged:      unit != li.UnitPrice,
		})
	}
	return lines, unpriced
}

func shippingTotal(cart *domain.Cart) int64 {
	if cart == nil {
		return 0
	}
	var total int64
	for _, m := range cart.ShippingMethods {
		if m.Amount > 0 {
			total += m.Amount
		}
	}
	return total
}
