package domain

import (
	"encoding/json"
	"time"
)

// PaymentStatus is the status of a payment session.
type PaymentStatus string

// Payment session statuses.
const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusCaptured   PaymentStatus = "captured"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

var paymentRank = map[PaymentStatus]int{
	PaymentStatusPending:    0,
	PaymentStatusAuthorized: 1,
	PaymentStatusCaptured:   2,
}

// IsValid reports whether s is a known status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusCaptured,
		PaymentStatusFailed, PaymentStatusCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether s is an absorbing status.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCanceled
}

// Advances reports whether moving from s to next is a forward step in the
// lattice pending < authorized < captured. Failed and canceled are absorbing
// and can only be entered from pending or authorized.
func (s PaymentStatus) Advances(next PaymentStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next.IsTerminal() {
		return s == PaymentStatusPending || s == PaymentStatusAuthorized
	}
	return paymentRank[next] > paymentRank[s]
}

// PaymentSession is a provider-specific payment attempt for a cart.
type PaymentSession struct {
	ID           string `json:"id"`
	CartID       string `json:"cart_id"`
	ProviderCode string `json:"provider_code"`
	// ProviderReference is the provider's id for the session, e.g. a Stripe
	// payment intent id.
	ProviderReference string          `json:"provider_reference,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	Amount            int64           `json:"amount"`
	CurrencyCode      string          `json:"currency_code"`
	Status            PaymentStatus   `json:"status"`
	IsSelected        bool            `json:"is_selected"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PaymentCollection groups the payment sessions of a cart. At most one
// session is selected.
type PaymentCollection struct {
	CartID   string           `json:"cart_id"`
	Sessions []PaymentSession `json:"sessions"`
}

// Selected returns the selected session, or nil.
func (pc *PaymentCollection) Selected() *PaymentSession {
	if pc == nil {
		return nil
	}
	for i := range pc.Sessions {
		if pc.Sessions[i].IsSelected {
			return &pc.Sessions[i]
		}
	}
	return nil
}
