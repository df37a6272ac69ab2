package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentStatus_Advances(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusAuthorized, true},
		{PaymentStatusPending, PaymentStatusCaptured, true},
		{PaymentStatusAuthorized, PaymentStatusCaptured, true},
		{PaymentStatusCaptured, PaymentStatusAuthorized, false},
		{PaymentStatusCaptured, PaymentStatusPending, false},
		{PaymentStatusAuthorized, PaymentStatusAuthorized, false},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusAuthorized, PaymentStatusCanceled, true},
		{PaymentStatusCaptured, PaymentStatusFailed, false},
		{PaymentStatusFailed, PaymentStatusCaptured, false},
		{PaymentStatusCanceled, PaymentStatusFailed, false},
		{PaymentStatusPending, PaymentStatus("refunded"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Advances(tt.to))
		})
	}
}

func TestPrice_Contains(t *testing.T) {
	p := Price{MinQuantity: 0, MaxQuantity: 4}
	assert.True(t, p.Contains(1))
	assert.True(t, p.Contains(4))
	assert.False(t, p.Contains(5))
	assert.False(t, p.Contains(0))

	open := Price{MinQuantity: 5}
	assert.False(t, open.Contains(4))
	assert.True(t, open.Contains(10_000))
}

func TestDetectMismatch(t *testing.T) {
	guest := &Cart{ID: "c1"}
	owned := &Cart{ID: "c2", CustomerID: "cus_1"}
	customer := &Customer{ID: "cus_1", Email: "a@example.com"}

	assert.True(t, DetectMismatch(guest, customer))
	assert.False(t, DetectMismatch(owned, customer))
	assert.False(t, DetectMismatch(guest, nil))
	assert.False(t, DetectMismatch(nil, customer))
	assert.False(t, DetectMismatch(guest, &Customer{}))
}

func TestAddress_ValidFor(t *testing.T) {
	region := &Region{ID: "reg_us", CurrencyCode: "USD", Countries: []string{"us", "ca"}}
	addr := &Address{
		FirstName: "Ada", LastName: "Lovelace", Address1: "1 Main St",
		City: "Springfield", PostalCode: "12345", CountryCode: "US",
	}
	assert.True(t, addr.ValidFor(region))

	foreign := *addr
	foreign.CountryCode = "DE"
	assert.False(t, foreign.ValidFor(region))

	incomplete := *addr
	incomplete.City = "  "
	assert.False(t, incomplete.ValidFor(region))

	var missing *Address
	assert.False(t, missing.ValidFor(region))
	assert.False(t, addr.ValidFor(nil))
}

func TestCart_CodeHelpers(t *testing.T) {
	c := &Cart{DiscountCodes: []string{"SUMMER"}, GiftCardCodes: []string{"GC-1", "GC-2"}}

	assert.True(t, c.HasDiscount("summer"))
	assert.True(t, c.RemoveDiscount("Summer"))
	assert.False(t, c.RemoveDiscount("summer"))
	assert.Empty(t, c.DiscountCodes)

	assert.True(t, c.RemoveGiftCard("gc-1"))
	assert.Equal(t, []string{"GC-2"}, c.GiftCardCodes)
}

func TestPaymentCollection_Selected(t *testing.T) {
	var none *PaymentCollection
	assert.Nil(t, none.Selected())

	pc := &PaymentCollection{Sessions: []PaymentSession{{ID: "ps_1"}, {ID: "ps_2", IsSelected: true}}}
	assert.Equal(t, "ps_2", pc.Selected().ID)
}

func TestOrder_OwnedBy(t *testing.T) {
	o := &Order{CustomerID: "cus_1", Email: "a@example.com"}
	assert.True(t, o.OwnedBy(&Customer{ID: "cus_1"}))
	assert.False(t, o.OwnedBy(&Customer{ID: "cus_2", Email: "a@example.com"}))

	guestOrder := &Order{Email: "A@Example.com"}
	assert.True(t, guestOrder.OwnedBy(&Customer{ID: "cus_9", Email: "a@example.com"}))
	assert.False(t, guestOrder.OwnedBy(nil))
}
