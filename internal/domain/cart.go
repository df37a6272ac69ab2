package domain

import (
	"strings"
	"time"
)

// Cart operation limits.
const (
	MaxQuantityPerItem = 100
	MaxItemsPerCart    = 50
)

// Cart is a shopping cart. Totals are never stored on the cart; they are
// recomputed from the line items on every read.
type Cart struct {
	ID              string           `json:"id"`
	RegionID        string           `json:"region_id"`
	CurrencyCode    string           `json:"currency_code"`
	CustomerID      string           `json:"customer_id,omitempty"`
	Email           string           `json:"email,omitempty"`
	LineItems       []LineItem       `json:"line_items"`
	ShippingAddress *Address         `json:"shipping_address,omitempty"`
	ShippingMethods []ShippingMethod `json:"shipping_methods"`
	DiscountCodes   []string         `json:"discount_codes"`
	// GiftCardCodes are kept in application order.
	GiftCardCodes []string `json:"gift_card_codes"`
	// Payment is hydrated from the payment session store on read.
	Payment     *PaymentCollection `json:"-"`
	OrderID     string             `json:"order_id,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// LineItem is a single variant line. UnitPrice is the snapshot captured when
// the line was added or last repriced.
type LineItem struct {
	ID                string    `json:"id"`
	VariantID         string    `json:"variant_id"`
	ProductID         string    `json:"product_id"`
	Title             string    `json:"title"`
	SKU               string    `json:"sku"`
	Quantity          int       `json:"quantity"`
	UnitPrice         int64     `json:"unit_price"`
	OriginalUnitPrice int64     `json:"original_unit_price"`
	PriceID           string    `json:"price_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ShippingMethod is a shipping option selected on a cart.
type ShippingMethod struct {
	ID               string `json:"id"`
	ShippingOptionID string `json:"shipping_option_id"`
	Name             string `json:"name"`
	Amount           int64  `json:"amount"`
}

// ShippingOption is reference data describing a purchasable shipping method.
type ShippingOption struct {
	ID       string `json:"id"`
	RegionID string `json:"region_id"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
}

// Address is a postal address.
type Address struct {
	FirstName   string `json:"first_name" validate:"required,max=100"`
	LastName    string `json:"last_name" validate:"required,max=100"`
	Company     string `json:"company,omitempty" validate:"max=200"`
	Address1    string `json:"address_1" validate:"required,max=255"`
	Address2    string `json:"address_2,omitempty" validate:"max=255"`
	City        string `json:"city" validate:"required,max=100"`
	Province    string `json:"province,omitempty" validate:"max=100"`
	PostalCode  string `json:"postal_code" validate:"required,max=20"`
	CountryCode string `json:"country_code" validate:"required,iso3166_1_alpha2"`
	Phone       string `json:"phone,omitempty" validate:"max=40"`
}

// ValidFor reports whether the address has every required field and ships to
// a country of the region.
func (a *Address) ValidFor(region *Region) bool {
	if a == nil {
		return false
	}
	for _, f := range []string{a.FirstName, a.LastName, a.Address1, a.City, a.PostalCode, a.CountryCode} {
		if strings.TrimSpace(f) == "" {
			return false
		}
	}
	return region.HasCountry(a.CountryCode)
}

// IsCompleted reports whether an order has been created from the cart.
func (c *Cart) IsCompleted() bool {
	return c.CompletedAt != nil
}

// FindLineItem returns the index of the line item with the given id, or -1.
func (c *Cart) FindLineItem(id string) int {
	for i := range c.LineItems {
		if c.LineItems[i].ID == id {
			return i
		}
	}
	return -1
}

// FindLineItemByVariant returns the index of the line for a variant, or -1.
func (c *Cart) FindLineItemByVariant(variantID string) int {
	for i := range c.LineItems {
		if c.LineItems[i].VariantID == variantID {
			return i
		}
	}
	return -1
}

// VariantIDs returns the distinct variant ids referenced by the cart.
func (c *Cart) VariantIDs() []string {
	seen := make(map[string]struct{}, len(c.LineItems))
	ids := make([]string, 0, len(c.LineItems))
	for _, li := range c.LineItems {
		if _, ok := seen[li.VariantID]; ok {
			continue
		}
		seen[li.VariantID] = struct{}{}
		ids = append(ids, li.VariantID)
	}
	return ids
}

// HasShippingOption reports whether the option is already selected.
func (c *Cart) HasShippingOption(optionID string) bool {
	for _, m := range c.ShippingMethods {
		if m.ShippingOptionID == optionID {
			return true
		}
	}
	return false
}

// ItemCount returns the total quantity across all lines.
func (c *Cart) ItemCount() int {
	var n int
	for _, li := range c.LineItems {
		n += li.Quantity
	}
	return n
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

func removeCode(codes []string, code string) ([]string, bool) {
	for i, c := range codes {
		if strings.EqualFold(c, code) {
			return append(codes[:i:i], codes[i+1:]...), true
		}
	}
	return codes, false
}

// HasDiscount reports whether the discount code is applied.
func (c *Cart) HasDiscount(code string) bool { return containsCode(c.DiscountCodes, code) }

// HasGiftCard reports whether the gift card code is applied.
func (c *Cart) HasGiftCard(code string) bool { return containsCode(c.GiftCardCodes, code) }

// RemoveDiscount removes a discount code and reports whether it was present.
func (c *Cart) RemoveDiscount(code string) bool {
	var ok bool
	c.DiscountCodes, ok = removeCode(c.DiscountCodes, code)
	return ok
}

// RemoveGiftCard removes a gift card code and reports whether it was present.
func (c *Cart) RemoveGiftCard(code string) bool {
	var ok bool
	c.GiftCardCodes, ok = removeCode(c.GiftCardCodes, code)
	return ok
}
