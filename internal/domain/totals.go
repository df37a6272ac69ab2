package domain

// Totals is the derived monetary snapshot of a cart, in minor units.
// GrandTotal = Subtotal - DiscountTotal - GiftCardTotal + ShippingTotal + TaxTotal,
// clamped at zero.
type Totals struct {
	Subtotal      int64 `json:"subtotal"`
	DiscountTotal int64 `json:"discount_total"`
	GiftCardTotal int64 `json:"gift_card_total"`
	ShippingTotal int64 `json:"shipping_total"`
	TaxTotal      int64 `json:"tax_total"`
	GrandTotal    int64 `json:"grand_total"`

	Lines     []LineTotal    `json:"lines,omitempty"`
	Discounts []DiscountLine `json:"discounts,omitempty"`
	GiftCards []GiftCardDraw `json:"gift_cards,omitempty"`
	// UnpricedLineItems lists lines that could not be re-resolved and were
	// totalled from their snapshot price.
	UnpricedLineItems []string `json:"unpriced_line_items,omitempty"`
}

// LineTotal is the priced projection of one line item.
type LineTotal struct {
	LineItemID        string `json:"line_item_id"`
	UnitPrice         int64  `json:"unit_price"`
	OriginalUnitPrice int64  `json:"original_unit_price"`
	Quantity          int    `json:"quantity"`
	Total             int64  `json:"total"`
	// PriceChanged is set when re-resolution differs from the snapshot.
	PriceChanged bool `json:"price_changed"`
}

// DiscountLine is the amount one discount code contributed.
type DiscountLine struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

// GiftCardDraw is the amount drawn from one gift card.
type GiftCardDraw struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}
