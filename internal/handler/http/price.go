package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/commerce-engine/internal/service"
	"github.com/utafrali/commerce-engine/pkg/httputil"
)

// PriceHandler handles HTTP requests for price resolution.
type PriceHandler struct {
	service *service.PriceService
	logger  *slog.Logger
}

// NewPriceHandler creates a new price HTTP handler.
func NewPriceHandler(svc *service.PriceService, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{service: svc, logger: logger}
}

// Resolve handles POST /api/v1/prices/resolve
func (h *PriceHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req service.ResolvePricesInput
	if err := decode(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	prices, err := h.service.Resolve(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, prices)
}
