package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	"github.com/utafrali/commerce-engine/pkg/httputil"
	"github.com/utafrali/commerce-engine/pkg/middleware"
	"github.com/utafrali/commerce-engine/pkg/validator"
)

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// customerFrom returns the acting customer of the request, or nil for guests.
func customerFrom(r *http.Request) *domain.Customer {
	ident, ok := middleware.CustomerFromContext(r.Context())
	if !ok {
		return nil
	}
	return &domain.Customer{ID: ident.ID, Email: ident.Email}
}

// requireCustomer is customerFrom for routes that need an identified customer.
func requireCustomer(r *http.Request) (*domain.Customer, error) {
	customer := customerFrom(r)
	if customer == nil {
		return nil, apperrors.Unauthorized("customer authentication required")
	}
	return customer, nil
}

// decode reads and validates a JSON body. Malformed bodies become
// InvalidInput so they are answered with 400.
func decode(r *http.Request, dst any) error {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return nil
	}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return err
	}
	return apperrors.InvalidInput("invalid request body: " + err.Error())
}
