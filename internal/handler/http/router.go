package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/commerce-engine/internal/service"
	"github.com/utafrali/commerce-engine/pkg/health"
	"github.com/utafrali/commerce-engine/pkg/middleware"
)

const serviceName = "commerce-engine"

// Services groups the application services exposed over HTTP.
type Services struct {
	Carts     *service.CartService
	Prices    *service.PriceService
	Orders    *service.OrderService
	Transfers *service.TransferService
	Webhooks  *service.WebhookService
}

// NewRouter creates a chi router with all engine routes registered.
// webhookLimiter may be nil to leave the webhook route unthrottled.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	webhookLimiter *middleware.RateLimiter,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.Customer)
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	cartHandler := NewCartHandler(svcs.Carts, logger)
	priceHandler := NewPriceHandler(svcs.Prices, logger)
	transferHandler := NewTransferHandler(svcs.Orders, svcs.Transfers, logger)
	webhookHandler := NewWebhookHandler(svcs.Webhooks, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(ContentTypeJSON)

		r.Post("/prices/resolve", priceHandler.Resolve)

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", cartHandler.CreateCart)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)

				r.Post("/line-items", cartHandler.AddLineItem)
				r.Patch("/line-items/{lineID}", cartHandler.UpdateLineItem)
				r.Delete("/line-items/{lineID}", cartHandler.RemoveLineItem)

				r.Put("/shipping-address", cartHandler.SetShippingAddress)
				r.Post("/shipping-methods", cartHandler.AddShippingMethod)
				r.Delete("/shipping-methods/{optionID}", cartHandler.RemoveShippingMethod)

				r.Post("/discounts", cartHandler.ApplyDiscount)
				r.Delete("/discounts/{code}", cartHandler.RemoveDiscount)
				r.Post("/gift-cards", cartHandler.ApplyGiftCard)
				r.Delete("/gift-cards/{code}", cartHandler.RemoveGiftCard)

				r.Post("/payment-sessions", cartHandler.CreatePaymentSession)
				r.Post("/payment-sessions/{sessionID}/select", cartHandler.SelectPaymentSession)

				r.Post("/customer", cartHandler.AssociateCustomer)
			})
		})

		r.Get("/orders/{id}", transferHandler.GetOrder)
		r.Post("/orders/{id}/transfer-requests", transferHandler.RequestTransfer)

		r.Route("/transfer-requests/{id}", func(r chi.Router) {
			r.Post("/accept", transferHandler.Accept)
			r.Post("/decline", transferHandler.Decline)
		})
	})

	// Providers sign the raw body, so the webhook route skips content
	// negotiation and compression.
	r.Group(func(r chi.Router) {
		if webhookLimiter != nil {
			r.Use(webhookLimiter.Handler)
		}
		r.Post("/webhooks/{provider}", webhookHandler.Receive)
	})

	return r
}
