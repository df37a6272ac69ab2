package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/commerce-engine/internal/domain"
	pkgkafka "github.com/utafrali/commerce-engine/pkg/kafka"
	"github.com/utafrali/commerce-engine/pkg/logger"
)

// Kafka topics for engine domain events.
var (
	TopicCartCustomerAssociated = pkgkafka.Topic("cart", "customer_associated")
	TopicTransferRequested      = pkgkafka.Topic("order_transfer", "requested")
	TopicTransferAccepted       = pkgkafka.Topic("order_transfer", "accepted")
	TopicTransferDeclined       = pkgkafka.Topic("order_transfer", "declined")
	TopicTransferExpired        = pkgkafka.Topic("order_transfer", "expired")
	TopicPaymentSessionUpdated  = pkgkafka.Topic("payment_session", "updated")
)

// Aggregate type constants.
const (
	AggregateTypeCart           = "cart"
	AggregateTypeTransfer       = "order_transfer"
	AggregateTypePaymentSession = "payment_session"
)

// CustomerAssociatedData is the payload of a cart.customer_associated event.
type CustomerAssociatedData struct {
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id"`
	Email      string `json:"email,omitempty"`
}

// TransferData is the payload of every order_transfer event.
type TransferData struct {
	RequestID           string                `json:"request_id"`
	OrderID             string                `json:"order_id"`
	RequesterCustomerID string                `json:"requester_customer_id"`
	Status              domain.TransferStatus `json:"status"`
	OccurredAt          time.Time             `json:"occurred_at"`
}

// PaymentSessionUpdatedData is the payload of a payment_session.updated event.
type PaymentSessionUpdatedData struct {
	SessionID      string               `json:"session_id"`
	CartID         string               `json:"cart_id"`
	Provider       string               `json:"provider"`
	WebhookEventID string               `json:"webhook_event_id"`
	PreviousStatus domain.PaymentStatus `json:"previous_status"`
	Status         domain.PaymentStatus `json:"status"`
}

// Producer publishes engine domain events. A nil publisher turns every
// method into a no-op so the engine runs without Kafka.
type Producer struct {
	kafka  pkgkafka.Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: publisher, logger: logger}
}

// PublishCustomerAssociated publishes a cart.customer_associated event.
func (p *Producer) PublishCustomerAssociated(ctx context.Context, cart *domain.Cart) error {
	return p.publish(ctx, TopicCartCustomerAssociated, AggregateTypeCart, cart.ID, CustomerAssociatedData{
		CartID:     cart.ID,
		CustomerID: cart.CustomerID,
		Email:      cart.Email,
	})
}

// PublishTransfer publishes the event matching the request's status.
func (p *Producer) PublishTransfer(ctx context.Context, req *domain.TransferRequest, at time.Time) error {
	var topic string
	switch req.Status {
	case domain.TransferStatusPending:
		topic = TopicTransferRequested
	case domain.TransferStatusAccepted:
		topic = TopicTransferAccepted
	case domain.TransferStatusDeclined:
		topic = TopicTransferDeclined
	case domain.TransferStatusExpired:
		topic = TopicTransferExpired
	default:
		return fmt.Errorf("publish transfer event: unknown status %q", req.Status)
	}

	return p.publish(ctx, topic, AggregateTypeTransfer, req.OrderID, TransferData{
		RequestID:           req.ID,
		OrderID:             req.OrderID,
		RequesterCustomerID: req.RequesterCustomerID,
		Status:              req.Status,
		OccurredAt:          at,
	})
}

// PublishPaymentSessionUpdated publishes a payment_session.updated event.
func (p *Producer) PublishPaymentSessionUpdated(ctx context.Context, session *domain.PaymentSession, previous domain.PaymentStatus, webhookEventID string) error {
	return p.publish(ctx, TopicPaymentSessionUpdated, AggregateTypePaymentSession, session.CartID, PaymentSessionUpdatedData{
		SessionID:      session.ID,
		CartID:         session.CartID,
		Provider:       session.ProviderCode,
		WebhookEventID: webhookEventID,
		PreviousStatus: previous,
		Status:         session.Status,
	})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateType, aggregateID string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateType, aggregateID, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if id := logger.CustomerIDFromContext(ctx); id != "" {
		event.WithMetadata("customer_id", id)
	}
	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.EventID),
	)
	return nil
}
