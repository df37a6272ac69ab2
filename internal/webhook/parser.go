package webhook

import (
	"encoding/json"
	"strings"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// Parser decodes a verified payload into a provider-neutral event. Event
// types without a payment status mapping yield an event with empty Status.
type Parser interface {
	Parse(payload []byte) (domain.WebhookEvent, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(payload []byte) (domain.WebhookEvent, error)

// Parse implements Parser.
func (f ParserFunc) Parse(payload []byte) (domain.WebhookEvent, error) { return f(payload) }

var stripeStatuses = map[string]domain.PaymentStatus{
	"payment_intent.created":                   domain.PaymentStatusPending,
	"payment_intent.processing":                domain.PaymentStatusPending,
	"payment_intent.amount_capturable_updated": domain.PaymentStatusAuthorized,
	"payment_intent.succeeded":                 domain.PaymentStatusCaptured,
	"payment_intent.payment_failed":            domain.PaymentStatusFailed,
	"payment_intent.canceled":                  domain.PaymentStatusCanceled,
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseStripe decodes Stripe payment_intent events. The session reference is
// the session_id metadata when present and the payment intent id otherwise.
func ParseStripe(payload []byte) (domain.WebhookEvent, error) {
	var ev stripeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.WebhookEvent{}, apperrors.InvalidInput("malformed stripe event")
	}
	if ev.ID == "" || ev.Type == "" {
		return domain.WebhookEvent{}, apperrors.InvalidInput("stripe event id and type are required")
	}

	ref := ev.Data.Object.Metadata["session_id"]
	if ref == "" {
		ref = ev.Data.Object.ID
	}
	return domain.WebhookEvent{
		ID:               ev.ID,
		Type:             ev.Type,
		SessionReference: ref,
		Status:           stripeStatuses[ev.Type],
	}, nil
}

type genericEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// ParseGeneric decodes the {id, type, session_id, status} envelope used by
// providers without a dedicated parser. An unknown status leaves Status
// empty.
func ParseGeneric(payload []byte) (domain.WebhookEvent, error) {
	var ev genericEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return domain.WebhookEvent{}, apperrors.InvalidInput("malformed webhook event")
	}
	if ev.ID == "" || ev.Type == "" {
		return domain.WebhookEvent{}, apperrors.InvalidInput("webhook event id and type are required")
	}

	status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(ev.Status)))
	if !status.IsValid() {
		status = ""
	}
	return domain.WebhookEvent{
		ID:               ev.ID,
		Type:             ev.Type,
		SessionReference: ev.SessionID,
		Status:           status,
	}, nil
}
