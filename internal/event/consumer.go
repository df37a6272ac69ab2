// Package event publishes engine domain events and consumes the events the
// engine reacts to.
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	pkgkafka "github.com/utafrali/commerce-engine/pkg/kafka"
)

// TopicOrderCreated is published by the order service once an order exists.
var TopicOrderCreated = pkgkafka.Topic("order", "created")

// OrderIngester stores the order read model and completes its cart.
type OrderIngester interface {
	IngestOrder(ctx context.Context, order *domain.Order) error
}

// OrderCreatedData is the expected payload of an order.created event.
type OrderCreatedData struct {
	OrderID      string            `json:"order_id"`
	DisplayID    int64             `json:"display_id"`
	CartID       string            `json:"cart_id"`
	CustomerID   string            `json:"customer_id"`
	Email        string            `json:"email"`
	RegionID     string            `json:"region_id"`
	CurrencyCode string            `json:"currency_code"`
	Items        []domain.LineItem `json:"items"`
	Totals       domain.Totals     `json:"totals"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Consumer processes incoming Kafka events for the engine.
type Consumer struct {
	logger  *slog.Logger
	service OrderIngester
}

// NewConsumer creates a new event consumer.
func NewConsumer(service OrderIngester, logger *slog.Logger) *Consumer {
	return &Consumer{service: service, logger: logger}
}

// HandleOrderCreated stores the order and completes its cart. Malformed
// payloads are not retried.
func (c *Consumer) HandleOrderCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCreatedData
	if err := event.UnmarshalData(&data); err != nil {
		return backoff.Permanent(fmt.Errorf("unmarshal order.created data: %w", err))
	}
	if data.OrderID == "" || data.CartID == "" {
		return backoff.Permanent(fmt.Errorf("order.created event %s: order_id and cart_id are required", event.EventID))
	}

	c.logger.InfoContext(ctx, "processing order.created event",
		slog.String("order_id", data.OrderID),
		slog.String("cart_id", data.CartID),
	)

	createdAt := data.CreatedAt
	if createdAt.IsZero() {
		createdAt = event.Timestamp
	}
	order := &domain.Order{
		ID:           data.OrderID,
		DisplayID:    data.DisplayID,
		CartID:       data.CartID,
		CustomerID:   data.CustomerID,
		Email:        data.Email,
		RegionID:     data.RegionID,
		CurrencyCode: data.CurrencyCode,
		Items:        data.Items,
		Totals:       data.Totals,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	if err := c.service.IngestOrder(ctx, order); err != nil {
		err = fmt.Errorf("ingest order %s: %w", data.OrderID, err)
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}
