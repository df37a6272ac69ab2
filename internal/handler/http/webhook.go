package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commerce-engine/internal/service"
	"github.com/utafrali/commerce-engine/pkg/httputil"
	"github.com/utafrali/commerce-engine/pkg/validator"
)

// WebhookHandler receives payment provider webhooks.
type WebhookHandler struct {
	service *service.WebhookService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook HTTP handler.
func NewWebhookHandler(svc *service.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{service: svc, logger: logger}
}

// Receive handles POST /webhooks/{provider}. The body is passed on
// byte-for-byte since signatures cover the raw payload. Applied, duplicate,
// superseded and ignored events are all acknowledged with 200 so the
// provider stops redelivering.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validator.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "webhook payload too large"},
			})
			return
		}
		httputil.WriteBadRequest(w, "unreadable webhook payload")
		return
	}

	result, err := h.service.ApplyEvent(r.Context(), chi.URLParam(r, "provider"), payload, r.Header)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, result)
}
