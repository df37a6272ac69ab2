package memory

import (
	"context"
	"sync"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// OrderRepository implements repository.OrderRepository.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

// NewOrderRepository creates an order repository holding orders.
func NewOrderRepository(orders ...domain.Order) *OrderRepository {
	r := &OrderRepository{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *OrderRepository) Get(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	o.Items = append([]domain.LineItem(nil), o.Items...)
	return &o, nil
}

func (r *OrderRepository) Create(_ context.Context, o *domain.Order) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return false, nil
	}
	stored := *o
	stored.Items = append([]domain.LineItem(nil), o.Items...)
	r.orders[o.ID] = stored
	return true, nil
}

// reassign changes the owner of an order. Callers hold r.mu.
func (r *OrderRepository) reassign(orderID, customerID, email string) error {
	o, ok := r.orders[orderID]
	if !ok {
		return apperrors.NotFound("order", orderID)
	}
	o.CustomerID = customerID
	if email != "" {
		o.Email = email
	}
	r.orders[orderID] = o
	return nil
}
