// Package pricing resolves the price of a product variant for a region,
// currency and quantity.
package pricing

import (
	"strings"

	"github.com/utafrali/commerce-engine/internal/domain"
)

// Context selects which prices apply. Quantity below 1 is evaluated as 1.
type Context struct {
	RegionID string `json:"region_id"`
	Currency string `json:"currency_code"`
	Quantity int    `json:"quantity"`
}

// Result is the outcome of resolving a variant's price. When Available is
// false no price matched and the amounts are zero.
type Result struct {
	Available         bool   `json:"available"`
	CalculatedAmount  int64  `json:"calculated_amount"`
	OriginalAmount    int64  `json:"original_amount"`
	CurrencyCode      string `json:"currency_code"`
	CalculatedPriceID string `json:"calculated_price_id,omitempty"`
	IsSale            bool   `json:"is_sale"`
	PercentOff        int    `json:"percent_off"`
	// Ambiguous is set when more than one tier of the same price set covers
	// the quantity. The lowest amount still wins, first seen on ties.
	Ambiguous bool `json:"ambiguous"`
}

// Resolve picks the lowest price whose quantity tier contains the requested
// quantity, and derives the regular price and sale metadata. It is pure.
func Resolve(variant *domain.ProductVariant, pc Context) Result {
	res := Result{CurrencyCode: strings.ToUpper(pc.Currency)}
	if variant == nil {
		return res
	}

	q := pc.Quantity
	if q < 1 {
		q = 1
	}

	candidates := scoped(variant.Prices, pc.RegionID, pc.Currency)
	if len(candidates) == 0 {
		return res
	}

	var best *domain.Price
	tiersPerSet := make(map[string]int)
	for i := range candidates {
		p := &candidates[i]
		if !p.Contains(q) {
			continue
		}
		tiersPerSet[p.PriceListID]++
		if best == nil || p.Amount < best.Amount {
			best = p
		}
	}
	if best == nil {
		return res
	}

	res.Available = true
	res.CalculatedAmount = best.Amount
	res.CalculatedPriceID = best.ID
	res.OriginalAmount = regularAmount(candidates)
	for _, n := range tiersPerSet {
		if n > 1 {
			res.Ambiguous = true
		}
	}

	if res.CalculatedAmount < res.OriginalAmount {
		res.IsSale = true
		res.PercentOff = percentOff(res.CalculatedAmount, res.OriginalAmount)
	}
	return res
}

// ResolveMany resolves every variant with the same context, keyed by variant id.
func ResolveMany(variants []*domain.ProductVariant, pc Context) map[string]Result {
	out := make(map[string]Result, len(variants))
	for _, v := range variants {
		if v == nil {
			continue
		}
		out[v.ID] = Resolve(v, pc)
	}
	return out
}

// scoped keeps prices in the currency, preferring entries scoped to the
// region and falling back to unscoped entries. Entries scoped to another
// region never apply.
func scoped(prices []domain.Price, regionID, currency string) []domain.Price {
	var regional, global []domain.Price
	for _, p := range prices {
		if !strings.EqualFold(p.CurrencyCode, currency) {
			continue
		}
		switch {
		case p.RegionID == "":
			global = append(global, p)
		case regionID != "" && p.RegionID == regionID:
			regional = append(regional, p)
		}
	}
	if len(regional) > 0 {
		return regional
	}
	return global
}

// regularAmount is the lowest base price at the entry-level tier. Price list
// entries only count when no base price exists.
func regularAmount(candidates []domain.Price) int64 {
	base := make([]domain.Price, 0, len(candidates))
	for _, p := range candidates {
		if p.IsBase() {
			base = append(base, p)
		}
	}
	if len(base) == 0 {
		base = candidates
	}

	lowestMin := base[0].EffectiveMin()
	for _, p := range base[1:] {
		if m := p.EffectiveMin(); m < lowestMin {
			lowestMin = m
		}
	}

	var amount int64
	found := false
	for _, p := range base {
		if !p.Contains(lowestMin) {
			continue
		}
		if !found || p.Amount < amount {
			amount = p.Amount
			found = true
		}
	}
	return amount
}

// percentOff returns round((1 - calc/orig) * 100), rounding half up.
func percentOff(calc, orig int64) int {
	if orig <= 0 {
		return 0
	}
	n := (orig - calc) * 100
	return int((2*n + orig) / (2 * orig))
}
