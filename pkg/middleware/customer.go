package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Header names carrying the acting customer, set by the gateway after it
// authenticated the storefront session.
const (
	HeaderCustomerID    = "X-Customer-ID"
	HeaderCustomerEmail = "X-Customer-Email"
)

type customerKey struct{}

// CustomerIdentity is the acting customer as asserted by the gateway.
type CustomerIdentity struct {
	ID    string
	Email string
}

// Customer copies the acting-customer headers into the request context.
// Requests without them are anonymous. Handlers read the identity with
// CustomerFromContext and pass it to the service layer explicitly.
func Customer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderCustomerID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		ident := CustomerIdentity{
			ID:    id,
			Email: strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderCustomerEmail))),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), customerKey{}, ident)))
	})
}

// CustomerFromContext returns the acting customer, if any.
func CustomerFromContext(ctx context.Context) (CustomerIdentity, bool) {
	ident, ok := ctx.Value(customerKey{}).(CustomerIdentity)
	return ident, ok
}
