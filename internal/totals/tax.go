package totals

import "github.com/utafrali/commerce-engine/internal/domain"

// RegionRateTax returns a TaxFunc applying a flat rate per region, in basis
// points, rounding half up. Regions without a rate are untaxed.
func RegionRateTax(rates map[string]int64) TaxFunc {
	table := make(map[string]int64, len(rates))
	for id, bps := range rates {
		table[id] = bps
	}
	return func(region *domain.Region, taxable int64) int64 {
		if region == nil || taxable <= 0 {
			return 0
		}
		bps, ok := table[region.ID]
		if !ok || bps <= 0 {
			return 0
		}
		return (taxable*bps + 5_000) / 10_000
	}
}
