package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/event"
	"github.com/utafrali/commerce-engine/internal/repository"
	"github.com/utafrali/commerce-engine/internal/webhook"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	"github.com/utafrali/commerce-engine/pkg/lock"
	"github.com/utafrali/commerce-engine/pkg/tracing"
)

// unregisteredProvider labels deliveries for provider codes with no verifier.
const unregisteredProvider = "unregistered"

var webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "engine_webhook_events_total",
	Help: "Payment provider webhook events by outcome.",
}, []string{"provider", "outcome"})

// PaymentReadiness reports whether a cart's payment gate is satisfied.
type PaymentReadiness interface {
	PaymentReady(ctx context.Context, cartID string) (bool, error)
}

// WebhookResult describes what applying a provider event did.
type WebhookResult struct {
	Provider     string                `json:"provider"`
	EventID      string                `json:"event_id"`
	Outcome      domain.WebhookOutcome `json:"outcome"`
	Duplicate    bool                  `json:"duplicate"`
	SessionID    string                `json:"session_id,omitempty"`
	Status       domain.PaymentStatus  `json:"status,omitempty"`
	PaymentReady bool                  `json:"payment_ready"`
}

// WebhookDeps are the collaborators of WebhookService.
type WebhookDeps struct {
	Providers *webhook.Registry
	Payments  repository.PaymentSessionRepository
	Ledger    repository.EventLedger
	Locker    lock.Locker
	Producer  *event.Producer
	Readiness PaymentReadiness
}

// WebhookService applies payment provider events to payment sessions at
// most once per (provider, event id).
type WebhookService struct {
	providers *webhook.Registry
	payments  repository.PaymentSessionRepository
	ledger    repository.EventLedger
	locker    lock.Locker
	producer  *event.Producer
	readiness PaymentReadiness
	logger    *slog.Logger
	now       func() time.Time
}

// NewWebhookService creates a new webhook service.
func NewWebhookService(deps WebhookDeps, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		providers: deps.Providers,
		payments:  deps.Payments,
		ledger:    deps.Ledger,
		locker:    deps.Locker,
		producer:  deps.Producer,
		readiness: deps.Readiness,
		logger:    logger,
		now:       utcNow,
	}
}

// ApplyEvent verifies, parses and applies one delivery of a provider event.
// Redeliveries of a recorded event report Duplicate and change nothing.
// Status changes that do not advance the session are recorded as
// superseded. The cart is never completed here.
func (s *WebhookService) ApplyEvent(ctx context.Context, providerCode string, payload []byte, headers http.Header) (res *WebhookResult, err error) {
	label := providerCode
	if _, ok := s.providers.Lookup(providerCode); !ok {
		label = unregisteredProvider
	}
	ctx, end := tracing.StartSpan(ctx, "webhook.apply", attribute.String("webhook.provider", label))
	defer func() { end(err) }()

	res, err = s.applyEvent(ctx, providerCode, payload, headers)
	if err != nil {
		webhookEventsTotal.WithLabelValues(label, failureOutcome(err)).Inc()
		return nil, err
	}
	webhookEventsTotal.WithLabelValues(res.Provider, string(res.Outcome)).Inc()
	return res, nil
}

func (s *WebhookService) applyEvent(ctx context.Context, providerCode string, payload []byte, headers http.Header) (*WebhookResult, error) {
	provider, ok := s.providers.Lookup(providerCode)
	if !ok {
		s.logger.WarnContext(ctx, "webhook for unregistered provider",
			slog.String("provider", providerCode),
		)
		return nil, apperrors.Unauthorized("webhook signature verification failed")
	}
	if err := provider.Verifier.Verify(payload, headers); err != nil {
		s.logger.WarnContext(ctx, "webhook verification failed",
			slog.String("provider", provider.Code),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Unauthorized("webhook signature verification failed")
	}

	evt, err := provider.Parser.Parse(payload)
	if err != nil {
		return nil, err
	}
	evt.Provider = provider.Code
	evt.ReceivedAt = s.now()
	if evt.ID == "" {
		return nil, apperrors.InvalidInput("webhook event id is required")
	}

	release, err := acquire(ctx, s.locker, lock.WebhookEventKey(evt.Provider, evt.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	seen, err := s.ledger.Contains(ctx, evt.Provider, evt.ID)
	if err != nil {
		return nil, fmt.Errorf("check webhook ledger: %w", err)
	}
	res := &WebhookResult{Provider: evt.Provider, EventID: evt.ID}
	if seen {
		res.Duplicate = true
		res.Outcome = domain.WebhookOutcomeDuplicate
		s.logger.InfoContext(ctx, "duplicate webhook event",
			slog.String("provider", evt.Provider),
			slog.String("event_id", evt.ID),
		)
		return res, nil
	}

	if evt.Status == "" {
		res.Outcome = domain.WebhookOutcomeIgnored
		if err := s.record(ctx, evt, "", res.Outcome); err != nil {
			return nil, err
		}
		return res, nil
	}

	session, err := s.payments.GetByReference(ctx, evt.Provider, evt.SessionReference)
	if err != nil {
		return nil, fmt.Errorf("find payment session: %w", err)
	}

	session, previous, applied, err := s.advance(ctx, session.ID, evt.Status)
	if err != nil {
		return nil, err
	}

	res.SessionID = session.ID
	res.Status = session.Status
	res.Outcome = domain.WebhookOutcomeSuperseded
	if applied {
		res.Outcome = domain.WebhookOutcomeApplied
	}
	if err := s.record(ctx, evt, session.ID, res.Outcome); err != nil {
		return nil, err
	}

	if applied {
		if err := s.producer.PublishPaymentSessionUpdated(ctx, session, previous, evt.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish payment session updated event",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.readiness != nil {
		ready, err := s.readiness.PaymentReady(ctx, session.CartID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to evaluate payment readiness",
				slog.String("cart_id", session.CartID),
				slog.String("error", err.Error()),
			)
		}
		res.PaymentReady = ready
	}

	s.logger.InfoContext(ctx, "webhook event processed",
		slog.String("provider", evt.Provider),
		slog.String("event_id", evt.ID),
		slog.String("session_id", session.ID),
		slog.String("outcome", string(res.Outcome)),
		slog.String("status", string(session.Status)),
	)
	return res, nil
}

// advance moves the session to next under the session lock when next is
// further along the payment lattice. It returns the session as stored, its
// status before the call and whether it changed.
func (s *WebhookService) advance(ctx context.Context, sessionID string, next domain.PaymentStatus) (*domain.PaymentSession, domain.PaymentStatus, bool, error) {
	release, err := acquire(ctx, s.locker, lock.PaymentSessionKey(sessionID))
	if err != nil {
		return nil, "", false, err
	}
	defer release()

	session, err := s.payments.Get(ctx, sessionID)
	if err != nil {
		return nil, "", false, fmt.Errorf("get payment session: %w", err)
	}
	previous := session.Status
	if !previous.Advances(next) {
		return session, previous, false, nil
	}

	now := s.now()
	if err := s.payments.UpdateStatus(ctx, session.ID, next, now); err != nil {
		return nil, "", false, fmt.Errorf("update payment session: %w", err)
	}
	session.Status = next
	session.UpdatedAt = now
	return session, previous, true, nil
}

func (s *WebhookService) record(ctx context.Context, evt domain.WebhookEvent, sessionID string, outcome domain.WebhookOutcome) error {
	err := s.ledger.Record(ctx, domain.LedgerEntry{
		Provider:    evt.Provider,
		EventID:     evt.ID,
		EventType:   evt.Type,
		SessionID:   sessionID,
		Outcome:     outcome,
		ProcessedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

func failureOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
