// Package notify delivers notification requests to the notification service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/commerce-engine/pkg/httpclient"
	pkgkafka "github.com/utafrali/commerce-engine/pkg/kafka"
)

// Notification templates.
const (
	TemplateTransferRequested = "order_transfer_requested"
	TemplateTransferAccepted  = "order_transfer_accepted"
	TemplateTransferDeclined  = "order_transfer_declined"
)

// TopicNotificationRequested carries notification requests for the
// notification service.
var TopicNotificationRequested = pkgkafka.Topic("notification", "requested")

// Notifier requests delivery of a templated message. Delivery itself is
// asynchronous; a nil error only means the request was handed off.
type Notifier interface {
	Notify(ctx context.Context, templateID, recipient string, data map[string]string) error
}

// Request is the payload sent to the notification service.
type Request struct {
	Channel    string            `json:"channel"`
	TemplateID string            `json:"template_id"`
	Recipient  string            `json:"recipient"`
	Data       map[string]string `json:"data,omitempty"`
}

func newRequest(templateID, recipient string, data map[string]string) (Request, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return Request{}, fmt.Errorf("notify %s: recipient is required", templateID)
	}
	return Request{Channel: "email", TemplateID: templateID, Recipient: recipient, Data: data}, nil
}

// KafkaNotifier publishes notification requests on Kafka.
type KafkaNotifier struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(publisher pkgkafka.Publisher, logger *slog.Logger) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, logger: logger}
}

// Notify publishes a notification.requested event keyed by recipient.
func (n *KafkaNotifier) Notify(ctx context.Context, templateID, recipient string, data map[string]string) error {
	req, err := newRequest(templateID, recipient, data)
	if err != nil {
		return err
	}

	event, err := pkgkafka.NewEvent(TopicNotificationRequested, "notification", req.Recipient, req)
	if err != nil {
		return fmt.Errorf("create notification.requested event: %w", err)
	}
	if err := n.publisher.Publish(ctx, TopicNotificationRequested, event); err != nil {
		return fmt.Errorf("publish notification.requested event: %w", err)
	}

	n.logger.DebugContext(ctx, "notification requested",
		slog.String("template_id", templateID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// HTTPNotifier posts notification requests to the notification service
// through a circuit breaker.
type HTTPNotifier struct {
	client  *httpclient.CircuitBreakerClient
	baseURL string
}

// NewHTTPNotifier creates a notifier for the service at baseURL.
func NewHTTPNotifier(client *httpclient.CircuitBreakerClient, baseURL string) *HTTPNotifier {
	return &HTTPNotifier{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Notify posts the request to /api/v1/notifications.
func (n *HTTPNotifier) Notify(ctx context.Context, templateID, recipient string, data map[string]string) error {
	req, err := newRequest(templateID, recipient, data)
	if err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification request: %w", err)
	}

	resp, err := n.client.Post(ctx, n.baseURL+"/api/v1/notifications", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return httpclient.ParseResponseError(resp, "notification-service")
	}
	return nil
}

// LogNotifier only logs notification requests. It is meant for local
// development.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the template and recipient. Data values are not logged since
// they may carry tokens.
func (n *LogNotifier) Notify(ctx context.Context, templateID, recipient string, data map[string]string) error {
	if _, err := newRequest(templateID, recipient, data); err != nil {
		return err
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	n.logger.InfoContext(ctx, "notification requested",
		slog.String("template_id", templateID),
		slog.String("recipient", recipient),
		slog.Any("data_keys", keys),
	)
	return nil
}
