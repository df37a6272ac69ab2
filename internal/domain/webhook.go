package domain

import "time"

// WebhookEvent is a parsed payment-provider event. Status is empty for event
// types that do not map onto a payment status.
type WebhookEvent struct {
	Provider         string        `json:"provider"`
	ID               string        `json:"id"`
	Type             string        `json:"type"`
	SessionReference string        `json:"session_reference"`
	Status           PaymentStatus `json:"status,omitempty"`
	ReceivedAt       time.Time     `json:"received_at"`
}

// WebhookOutcome classifies what applying an event did.
type WebhookOutcome string

// Webhook outcomes.
const (
	WebhookOutcomeApplied    WebhookOutcome = "applied"
	WebhookOutcomeSuperseded WebhookOutcome = "superseded"
	WebhookOutcomeIgnored    WebhookOutcome = "ignored"
	WebhookOutcomeDuplicate  WebhookOutcome = "duplicate"
)

// LedgerEntry records a processed webhook event, keyed by (Provider, EventID).
type LedgerEntry struct {
	Provider    string         `json:"provider"`
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	SessionID   string         `json:"session_id,omitempty"`
	Outcome     WebhookOutcome `json:"outcome"`
	ProcessedAt time.Time      `json:"processed_at"`
}
