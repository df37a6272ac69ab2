package domain

// ProductVariant is a purchasable variant with its price set. Prices keep
// their insertion order, which is the tie-break order during resolution.
type ProductVariant struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	SKU       string  `json:"sku"`
	Title     string  `json:"title"`
	Prices    []Price `json:"prices"`
}

// Price is a single price entry in minor currency units.
type Price struct {
	ID           string `json:"id"`
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currency_code"`
	// MinQuantity 0 is treated as 1.
	MinQuantity int `json:"min_quantity"`
	// MaxQuantity 0 means unbounded.
	MaxQuantity int `json:"max_quantity"`
	// RegionID is empty for prices valid in every region.
	RegionID string `json:"region_id,omitempty"`
	// PriceListID is empty for base prices.
	PriceListID string `json:"price_list_id,omitempty"`
}

// EffectiveMin returns the lower bound of the quantity range.
func (p Price) EffectiveMin() int {
	if p.MinQuantity < 1 {
		return 1
	}
	return p.MinQuantity
}

// Contains reports whether quantity q falls within the price's range.
func (p Price) Contains(q int) bool {
	if q < p.EffectiveMin() {
		return false
	}
	return p.MaxQuantity == 0 || q <= p.MaxQuantity
}

// IsBase reports whether the entry is a regular price rather than a price list entry.
func (p Price) IsBase() bool {
	return p.PriceListID == ""
}
