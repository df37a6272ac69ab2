package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/repository"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// CartCompleter marks carts completed once their order exists.
type CartCompleter interface {
	MarkCompleted(ctx context.Context, cartID, orderID string, at time.Time) error
}

// OrderService keeps the order read model used by transfers.
type OrderService struct {
	orders    repository.OrderRepository
	discounts repository.DiscountRepository
	carts     CartCompleter
	logger    *slog.Logger
}

// NewOrderService creates a new order service. discounts may be nil.
func NewOrderService(orders repository.OrderRepository, discounts repository.DiscountRepository, carts CartCompleter, logger *slog.Logger) *OrderService {
	return &OrderService{orders: orders, discounts: discounts, carts: carts, logger: logger}
}

// GetOrder returns an order of the read model.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// IngestOrder stores an order created elsewhere and completes its cart.
// Ingesting the same order again only re-completes the cart, which is a
// no-op. Discount usage is counted on first ingestion.
func (s *OrderService) IngestOrder(ctx context.Context, order *domain.Order) error {
	if order == nil || order.ID == "" || order.CartID == "" {
		return apperrors.InvalidInput("order id and cart id are required")
	}
	order.Email = domain.NormalizeEmail(order.Email)

	created, err := s.orders.Create(ctx, order)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	if err := s.carts.MarkCompleted(ctx, order.CartID, order.ID, order.CreatedAt); err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			if _, isState := apperrors.ConflictState(err); isState {
				return apperrors.InvalidInput(fmt.Sprintf("cart %s already belongs to another order", order.CartID))
			}
			return fmt.Errorf("complete cart: %w", err)
		}
		s.logger.WarnContext(ctx, "order references an unknown cart",
			slog.String("order_id", order.ID),
			slog.String("cart_id", order.CartID),
		)
	}

	if !created {
		s.logger.InfoContext(ctx, "order already ingested", slog.String("order_id", order.ID))
		return nil
	}

	if s.discounts != nil {
		for _, d := range order.Totals.Discounts {
			if err := s.discounts.IncrementUsage(ctx, strings.ToUpper(d.Code)); err != nil {
				s.logger.ErrorContext(ctx, "failed to count discount usage",
					slog.String("order_id", order.ID),
					slog.String("code", d.Code),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.logger.InfoContext(ctx, "order ingested",
		slog.String("order_id", order.ID),
		slog.String("cart_id", order.CartID),
	)
	return nil
}
