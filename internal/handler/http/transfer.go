package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commerce-engine/internal/service"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	"github.com/utafrali/commerce-engine/pkg/httputil"
)

// TransferHandler handles HTTP requests for orders and their transfer requests.
type TransferHandler struct {
	orders    *service.OrderService
	transfers *service.TransferService
	logger    *slog.Logger
}

// NewTransferHandler creates a new transfer HTTP handler.
func NewTransferHandler(orders *service.OrderService, transfers *service.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{orders: orders, transfers: transfers, logger: logger}
}

// --- Request DTOs ---

// RequestTransferRequest is the JSON request body for requesting an order transfer.
type RequestTransferRequest struct {
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// DecisionRequest is the JSON request body for accepting or declining a transfer.
type DecisionRequest struct {
	Token string `json:"token" validate:"required"`
}

// --- Handlers ---

// GetOrder handles GET /api/v1/orders/{id}. Only the owner can read an order.
func (h *TransferHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	customer, err := requireCustomer(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !order.OwnedBy(customer) {
		h.writeError(w, r, apperrors.NotFound("order", id))
		return
	}
	httputil.WriteData(w, http.StatusOK, order)
}

// RequestTransfer handles POST /api/v1/orders/{id}/transfer-requests
func (h *TransferHandler) RequestTransfer(w http.ResponseWriter, r *http.Request) {
	customer, err := requireCustomer(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req RequestTransferRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	tr, err := h.transfers.RequestTransfer(r.Context(), chi.URLParam(r, "id"), req.Email, customer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusAccepted, tr)
}

// Accept handles POST /api/v1/transfer-requests/{id}/accept
func (h *TransferHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req DecisionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tr, err := h.transfers.Accept(r.Context(), id.String(), req.Token)
	h.writeTransfer(w, r, tr, err)
}

// Decline handles POST /api/v1/transfer-requests/{id}/decline
func (h *TransferHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req DecisionRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tr, err := h.transfers.Decline(r.Context(), id.String(), req.Token)
	h.writeTransfer(w, r, tr, err)
}

func (h *TransferHandler) writeTransfer(w http.ResponseWriter, r *http.Request, tr any, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, tr)
}

func (h *TransferHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}
