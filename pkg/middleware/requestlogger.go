package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/commerce-engine/pkg/logger"
)

// RequestLogger stores a request-scoped logger carrying correlation_id,
// customer_id, trace_id and span_id in the context. Mount it after
// RequestLogging, Tracing and Customer.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if ident, ok := CustomerFromContext(ctx); ok {
				ctx = logger.WithCustomerID(ctx, ident.ID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
