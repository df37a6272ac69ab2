package pricing

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/utafrali/commerce-engine/internal/domain"
)

func genPrice() gopter.Gen {
	return gopter.CombineGens(
		gen.Int64Range(1, 100_000),
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
		gen.Bool(),
	).Map(func(vals []interface{}) domain.Price {
		minQ := vals[1].(int)
		span := vals[2].(int)
		p := domain.Price{Amount: vals[0].(int64), CurrencyCode: "USD", MinQuantity: minQ}
		if span > 0 {
			p.MaxQuantity = p.EffectiveMin() + span - 1
		}
		if vals[3].(bool) {
			p.PriceListID = "pl_1"
		}
		return p
	})
}

func variantOf(prices []domain.Price) *domain.ProductVariant {
	for i := range prices {
		prices[i].ID = fmt.Sprintf("p_%d", i)
	}
	return &domain.ProductVariant{ID: "var_prop", Prices: prices}
}

// Lowest amount among tiers containing q, first seen on ties.
func TestResolve_TierSelectionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("calculated price is the minimal tier containing q", prop.ForAll(
		func(prices []domain.Price, q int) bool {
			v := variantOf(prices)
			res := Resolve(v, Context{Currency: "USD", Quantity: q})

			eq := q
			if eq < 1 {
				eq = 1
			}
			var want *domain.Price
			for i := range v.Prices {
				p := &v.Prices[i]
				if p.Contains(eq) && (want == nil || p.Amount < want.Amount) {
					want = p
				}
			}
			if want == nil {
				return !res.Available
			}
			return res.Available &&
				res.CalculatedAmount == want.Amount &&
				res.CalculatedPriceID == want.ID
		},
		gen.SliceOf(genPrice()),
		gen.IntRange(-2, 60),
	))

	properties.TestingRun(t)
}

func TestResolve_SaleDetectionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("sale flag iff calculated < original, percent is stable", prop.ForAll(
		func(prices []domain.Price, q1, q2 int) bool {
			v := variantOf(prices)
			ctx1 := Context{Currency: "USD", Quantity: q1}
			ctx2 := Context{Currency: "USD", Quantity: q2}

			first := Resolve(v, ctx1)
			_ = Resolve(v, ctx2)
			again := Resolve(v, ctx1)
			if first != again {
				return false
			}
			if !first.Available {
				return !first.IsSale && first.PercentOff == 0
			}
			if first.IsSale != (first.CalculatedAmount < first.OriginalAmount) {
				return false
			}
			if !first.IsSale {
				return first.PercentOff == 0
			}
			exact := (1 - float64(first.CalculatedAmount)/float64(first.OriginalAmount)) * 100
			return math.Abs(float64(first.PercentOff)-exact) <= 0.5+1e-9
		},
		gen.SliceOf(genPrice()),
		gen.IntRange(1, 40),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}
