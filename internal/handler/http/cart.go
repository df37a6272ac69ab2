package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/service"
	"github.com/utafrali/commerce-engine/pkg/httputil"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service *service.CartService
	logger  *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// UpdateLineItemRequest is the JSON request body for changing a line quantity.
type UpdateLineItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// ShippingMethodRequest is the JSON request body for adding a shipping method.
type ShippingMethodRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

// CodeRequest is the JSON request body for applying a discount or gift card.
type CodeRequest struct {
	Code string `json:"code" validate:"required,max=100"`
}

// --- Handlers ---

// CreateCart handles POST /api/v1/carts
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCartInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.CreateCart(r.Context(), req, customerFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, view)
}

// GetCart handles GET /api/v1/carts/{id}
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetCart(r.Context(), chi.URLParam(r, "id"), customerFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// AddLineItem handles POST /api/v1/carts/{id}/line-items
func (h *CartHandler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	var req service.AddLineItemInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.AddLineItem(r.Context(), chi.URLParam(r, "id"), req)
	h.writeView(w, r, view, err)
}

// UpdateLineItem handles PATCH /api/v1/carts/{id}/line-items/{lineID}
func (h *CartHandler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineItemRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.UpdateLineItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"), req.Quantity)
	h.writeView(w, r, view, err)
}

// RemoveLineItem handles DELETE /api/v1/carts/{id}/line-items/{lineID}
func (h *CartHandler) RemoveLineItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveLineItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineID"))
	h.writeView(w, r, view, err)
}

// SetShippingAddress handles PUT /api/v1/carts/{id}/shipping-address
func (h *CartHandler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	var req domain.Address
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.SetShippingAddress(r.Context(), chi.URLParam(r, "id"), req)
	h.writeView(w, r, view, err)
}

// AddShippingMethod handles POST /api/v1/carts/{id}/shipping-methods
func (h *CartHandler) AddShippingMethod(w http.ResponseWriter, r *http.Request) {
	var req ShippingMethodRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.AddShippingMethod(r.Context(), chi.URLParam(r, "id"), req.OptionID)
	h.writeView(w, r, view, err)
}

// RemoveShippingMethod handles DELETE /api/v1/carts/{id}/shipping-methods/{optionID}
func (h *CartHandler) RemoveShippingMethod(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveShippingMethod(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "optionID"))
	h.writeView(w, r, view, err)
}

// ApplyDiscount handles POST /api/v1/carts/{id}/discounts
func (h *CartHandler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.ApplyDiscount(r.Context(), chi.URLParam(r, "id"), req.Code)
	h.writeView(w, r, view, err)
}

// RemoveDiscount handles DELETE /api/v1/carts/{id}/discounts/{code}
func (h *CartHandler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveDiscount(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "code"))
	h.writeView(w, r, view, err)
}

// ApplyGiftCard handles POST /api/v1/carts/{id}/gift-cards
func (h *CartHandler) ApplyGiftCard(w http.ResponseWriter, r *http.Request) {
	var req CodeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.service.ApplyGiftCard(r.Context(), chi.URLParam(r, "id"), req.Code)
	h.writeView(w, r, view, err)
}

// RemoveGiftCard handles DELETE /api/v1/carts/{id}/gift-cards/{code}
func (h *CartHandler) RemoveGiftCard(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.RemoveGiftCard(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "code"))
	h.writeView(w, r, view, err)
}

// CreatePaymentSession handles POST /api/v1/carts/{id}/payment-sessions
func (h *CartHandler) CreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePaymentSessionInput
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	session, err := h.service.CreatePaymentSession(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, session)
}

// SelectPaymentSession handles POST /api/v1/carts/{id}/payment-sessions/{sessionID}/select
func (h *CartHandler) SelectPaymentSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.SelectPaymentSession(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sessionID"))
	h.writeView(w, r, view, err)
}

// AssociateCustomer handles POST /api/v1/carts/{id}/customer. An unassociated
// cart is attached to the acting customer; a cart already theirs is returned
// as is.
func (h *CartHandler) AssociateCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := requireCustomer(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	cartID := chi.URLParam(r, "id")
	if _, err := h.service.ReconcileCustomer(r.Context(), cartID, customer); err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.service.GetCart(r.Context(), cartID, customer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, view)
}

// --- Helpers ---

// writeView writes the result of a cart mutation. The mismatch flag is
// computed for the acting customer, which mutations do not take.
func (h *CartHandler) writeView(w http.ResponseWriter, r *http.Request, view *service.CartView, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view.CustomerMismatch = domain.DetectMismatch(view.Cart, customerFrom(r))
	httputil.WriteData(w, http.StatusOK, view)
}

func (h *CartHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}
