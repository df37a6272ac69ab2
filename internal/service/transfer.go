package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/commerce-engine/internal/auth"
	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/event"
	"github.com/utafrali/commerce-engine/internal/notify"
	"github.com/utafrali/commerce-engine/internal/repository"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	"github.com/utafrali/commerce-engine/pkg/lock"
	"github.com/utafrali/commerce-engine/pkg/tracing"
)

const expireBatchSize = 100

// TransferDeps are the collaborators of TransferService.
type TransferDeps struct {
	Orders    repository.OrderRepository
	Transfers repository.TransferRequestRepository
	Locker    lock.Locker
	Notifier  notify.Notifier
	Producer  *event.Producer
	Tokens    *auth.TokenManager
}

// TransferService implements order transfer requests between customers.
type TransferService struct {
	orders    repository.OrderRepository
	transfers repository.TransferRequestRepository
	locker    lock.Locker
	notifier  notify.Notifier
	producer  *event.Producer
	tokens    *auth.TokenManager
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewTransferService creates a new transfer service. Requests expire ttl
// after they are created.
func NewTransferService(deps TransferDeps, logger *slog.Logger, ttl time.Duration) *TransferService {
	return &TransferService{
		orders:    deps.Orders,
		transfers: deps.Transfers,
		locker:    deps.Locker,
		notifier:  deps.Notifier,
		producer:  deps.Producer,
		tokens:    deps.Tokens,
		ttl:       ttl,
		logger:    logger,
		now:       utcNow,
	}
}

// RequestTransfer asks the owner of an order to hand it over to the acting
// customer. While a request from the same customer is pending it is
// returned as is. The decision token is sent to the order's email only.
func (s *TransferService) RequestTransfer(ctx context.Context, orderID, requesterEmail string, customer *domain.Customer) (*domain.TransferRequest, error) {
	if customer == nil || customer.ID == "" {
		return nil, apperrors.Unauthorized("a signed-in customer is required")
	}
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	requesterEmail = domain.NormalizeEmail(requesterEmail)
	if requesterEmail == "" {
		requesterEmail = domain.NormalizeEmail(customer.Email)
	}
	if requesterEmail == "" {
		return nil, apperrors.InvalidInput("requester email is required")
	}

	release, err := acquire(ctx, s.locker, lock.OrderKey(orderID))
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.OwnedBy(customer) {
		return nil, apperrors.InvalidInput("order already belongs to the requesting customer")
	}

	now := s.now()
	existing, err := s.transfers.GetPendingByOrder(ctx, orderID)
	switch {
	case err == nil:
		if !now.Before(existing.ExpiresAt) {
			if err := s.expire(ctx, existing, now); err != nil {
				return nil, err
			}
			break
		}
		if existing.RequesterCustomerID == customer.ID {
			return existing, nil
		}
		return nil, apperrors.StateConflict(string(domain.TransferStatusPending), "order already has a pending transfer request")
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("get pending transfer request: %w", err)
	}

	req := &domain.TransferRequest{
		ID:                  uuid.New().String(),
		OrderID:             order.ID,
		RequesterCustomerID: customer.ID,
		RequesterEmail:      requesterEmail,
		OwnerEmail:          domain.NormalizeEmail(order.Email),
		Status:              domain.TransferStatusPending,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.ttl),
	}
	token, err := s.tokens.Generate(req.ID, req.OrderID, req.CreatedAt, req.ExpiresAt)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req.TokenDigest = auth.Digest(token)

	if err := s.transfers.Create(ctx, req); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.StateConflict(string(domain.TransferStatusPending), "order already has a pending transfer request")
		}
		return nil, fmt.Errorf("create transfer request: %w", err)
	}

	s.publish(ctx, req, now)
	s.notify(ctx, notify.TemplateTransferRequested, req.OwnerEmail, req, map[string]string{
		"token":           token,
		"requester_email": req.RequesterEmail,
		"expires_at":      req.ExpiresAt.Format(time.RFC3339),
	})

	s.logger.InfoContext(ctx, "transfer requested",
		slog.String("request_id", req.ID),
		slog.String("order_id", req.OrderID),
		slog.String("requester_customer_id", req.RequesterCustomerID),
	)
	return req, nil
}

// Accept accepts a pending request and reassigns the order to the
// requester. Accepting an accepted request succeeds without side effects.
func (s *TransferService) Accept(ctx context.Context, requestID, token string) (*domain.TransferRequest, error) {
	return s.decide(ctx, requestID, token, domain.TransferStatusAccepted)
}

// Decline declines a pending request. Declining a declined request succeeds
// without side effects.
func (s *TransferService) Decline(ctx context.Context, requestID, token string) (*domain.TransferRequest, error) {
	return s.decide(ctx, requestID, token, domain.TransferStatusDeclined)
}

// decide authorizes the token, then moves the request to target under the
// order lock.
func (s *TransferService) decide(ctx context.Context, requestID, token string, target domain.TransferStatus) (_ *domain.TransferRequest, err error) {
	ctx, end := tracing.StartSpan(ctx, "transfer.decide",
		attribute.String("transfer.request_id", requestID),
		attribute.String("transfer.target", string(target)),
	)
	defer func() { end(err) }()

	claims, err := s.tokens.Parse(token)
	if err != nil || claims.Subject != requestID {
		return nil, apperrors.Unauthorized("invalid transfer token")
	}

	req, err := s.transfers.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	if claims.OrderID != req.OrderID || !auth.DigestMatches(token, req.TokenDigest) {
		return nil, apperrors.Unauthorized("invalid transfer token")
	}

	release, err := acquire(ctx, s.locker, lock.OrderKey(req.OrderID))
	if err != nil {
		return nil, err
	}
	defer release()

	req, err = s.transfers.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	if req.Status == target {
		return req, nil
	}
	if req.Status.IsTerminal() {
		return nil, apperrors.StateConflict(string(req.Status), fmt.Sprintf("transfer request is %s", req.Status))
	}

	now := s.now()
	if claims.Expired(now) || !now.Before(req.ExpiresAt) {
		if err := s.expire(ctx, req, now); err != nil {
			return nil, err
		}
		return nil, apperrors.StateConflict(string(domain.TransferStatusExpired), "transfer request expired")
	}

	if target == domain.TransferStatusAccepted {
		err = s.transfers.Accept(ctx, req, now)
	} else {
		err = s.transfers.Resolve(ctx, req.ID, target, now)
	}
	if err != nil {
		return nil, fmt.Errorf("%s transfer request: %w", target, err)
	}
	req.Status = target
	req.ResolvedAt = &now

	s.publish(ctx, req, now)
	template := notify.TemplateTransferDeclined
	if target == domain.TransferStatusAccepted {
		template = notify.TemplateTransferAccepted
	}
	s.notify(ctx, template, req.OwnerEmail, req, nil)
	s.notify(ctx, template, req.RequesterEmail, req, nil)

	s.logger.InfoContext(ctx, "transfer request resolved",
		slog.String("request_id", req.ID),
		slog.String("order_id", req.OrderID),
		slog.String("status", string(req.Status)),
	)
	return req, nil
}

// Expire moves a pending request whose expiry has passed to expired. A
// request still inside its TTL is a conflict. Expiring an expired request
// is a no-op.
func (s *TransferService) Expire(ctx context.Context, requestID string) (*domain.TransferRequest, error) {
	req, err := s.transfers.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", err)
	}

	release, err := acquire(ctx, s.locker, lock.OrderKey(req.OrderID))
	if err != nil {
		return nil, err
	}
	defer release()

	req, err = s.transfers.Get(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	switch req.Status {
	case domain.TransferStatusExpired:
		return req, nil
	case domain.TransferStatusPending:
	default:
		return nil, apperrors.StateConflict(string(req.Status), fmt.Sprintf("transfer request is %s", req.Status))
	}

	now := s.now()
	if now.Before(req.ExpiresAt) {
		return nil, apperrors.StateConflict(string(req.Status), "transfer request has not expired yet")
	}
	if err := s.expire(ctx, req, now); err != nil {
		return nil, err
	}
	return req, nil
}

// ExpireStale expires every pending request created more than olderThan
// ago and returns how many were expired.
func (s *TransferService) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	before := s.now().Add(-olderThan)
	var expired int
	for {
		batch, err := s.transfers.ListPendingCreatedBefore(ctx, before, expireBatchSize)
		if err != nil {
			return expired, fmt.Errorf("list stale transfer requests: %w", err)
		}
		for _, req := range batch {
			if _, err := s.Expire(ctx, req.ID); err != nil {
				if _, raced := apperrors.ConflictState(err); raced {
					continue
				}
				return expired, err
			}
			expired++
		}
		if len(batch) < expireBatchSize {
			return expired, nil
		}
	}
}

// expire resolves req as expired. The caller holds the order lock.
func (s *TransferService) expire(ctx context.Context, req *domain.TransferRequest, now time.Time) error {
	if err := s.transfers.Resolve(ctx, req.ID, domain.TransferStatusExpired, now); err != nil {
		return fmt.Errorf("expire transfer request: %w", err)
	}
	req.Status = domain.TransferStatusExpired
	req.ResolvedAt = &now
	s.publish(ctx, req, now)

	s.logger.InfoContext(ctx, "transfer request expired",
		slog.String("request_id", req.ID),
		slog.String("order_id", req.OrderID),
	)
	return nil
}

func (s *TransferService) publish(ctx context.Context, req *domain.TransferRequest, at time.Time) {
	if err := s.producer.PublishTransfer(ctx, req, at); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish transfer event",
			slog.String("request_id", req.ID),
			slog.String("status", string(req.Status)),
			slog.String("error", err.Error()),
		)
	}
}

// notify hands a message to the notifier. Failures are logged only.
func (s *TransferService) notify(ctx context.Context, templateID, recipient string, req *domain.TransferRequest, extra map[string]string) {
	if s.notifier == nil {
		return
	}
	if recipient == "" {
		s.logger.WarnContext(ctx, "transfer notification has no recipient",
			slog.String("request_id", req.ID),
			slog.String("template", templateID),
		)
		return
	}

	data := map[string]string{
		"request_id": req.ID,
		"order_id":   req.OrderID,
		"status":     string(req.Status),
	}
	for k, v := range extra {
		data[k] = v
	}
	if err := s.notifier.Notify(ctx, templateID, recipient, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to send transfer notification",
			slog.String("request_id", req.ID),
			slog.String("template", templateID),
			slog.String("error", err.Error()),
		)
	}
}
