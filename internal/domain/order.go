package domain

import "time"

// Order is the read model of an order created from a cart. It is immutable
// here except for ownership, which changes through transfer requests.
type Order struct {
	ID           string     `json:"id"`
	DisplayID    int64      `json:"display_id"`
	CartID       string     `json:"cart_id"`
	CustomerID   string     `json:"customer_id,omitempty"`
	Email        string     `json:"email"`
	RegionID     string     `json:"region_id"`
	CurrencyCode string     `json:"currency_code"`
	Items        []LineItem `json:"items"`
	Totals       Totals     `json:"totals"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// OwnedBy reports whether the customer already owns the order.
func (o *Order) OwnedBy(c *Customer) bool {
	if c == nil {
		return false
	}
	if o.CustomerID != "" && o.CustomerID == c.ID {
		return true
	}
	return o.CustomerID == "" && o.Email != "" && NormalizeEmail(o.Email) == NormalizeEmail(c.Email)
}
