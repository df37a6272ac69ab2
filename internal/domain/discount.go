package domain

import "time"

// Discount types.
const (
	DiscountTypePercentage   = "percentage"
	DiscountTypeFixedAmount  = "fixed_amount"
	DiscountTypeFreeShipping = "free_shipping"
)

// Discount is a code-based promotion rule.
type Discount struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Type string `json:"type"`
	// Value is in basis points for percentage discounts and minor units
	// for fixed amount discounts.
	Value          int64      `json:"value"`
	MaxAmount      int64      `json:"max_amount"`
	MinOrderAmount int64      `json:"min_order_amount"`
	UsageLimit     int        `json:"usage_limit"`
	UsageCount     int        `json:"usage_count"`
	IsActive       bool       `json:"is_active"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// GiftCard is a prepaid balance redeemable against carts.
type GiftCard struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Balance      int64      `json:"balance"`
	CurrencyCode string     `json:"currency_code"`
	RegionID     string     `json:"region_id,omitempty"`
	IsDisabled   bool       `json:"is_disabled"`
	EndsAt       *time.Time `json:"ends_at,omitempty"`
}

// Usable reports whether the gift card can be drawn at time now.
func (g *GiftCard) Usable(now time.Time) bool {
	if g.IsDisabled || g.Balance <= 0 {
		return false
	}
	return g.EndsAt == nil || now.Before(*g.EndsAt)
}
