package domain

import "strings"

// Customer is the authenticated actor an operation runs on behalf of.
// A nil *Customer denotes a guest.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// DetectMismatch reports whether an authenticated customer is acting on a
// cart that has not been associated with any customer yet.
func DetectMismatch(cart *Cart, customer *Customer) bool {
	if cart == nil || customer == nil || customer.ID == "" {
		return false
	}
	return cart.CustomerID == ""
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
