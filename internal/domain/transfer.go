package domain

import "time"

// TransferStatus is the lifecycle state of a transfer request.
type TransferStatus string

// Transfer request statuses. Every status except pending is terminal.
const (
	TransferStatusPending  TransferStatus = "pending"
	TransferStatusAccepted TransferStatus = "accepted"
	TransferStatusDeclined TransferStatus = "declined"
	TransferStatusExpired  TransferStatus = "expired"
)

// IsTerminal reports whether the status can no longer change.
func (s TransferStatus) IsTerminal() bool {
	return s != TransferStatusPending
}

// TransferRequest is a token-authorized offer to reassign an order to the
// requesting customer.
type TransferRequest struct {
	ID                  string `json:"id"`
	OrderID             string `json:"order_id"`
	RequesterCustomerID string `json:"requester_customer_id"`
	RequesterEmail      string `json:"requester_email"`
	// OwnerEmail is where the token is delivered.
	OwnerEmail  string         `json:"owner_email"`
	TokenDigest string         `json:"-"`
	Status      TransferStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}
