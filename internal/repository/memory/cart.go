package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// CartRepository implements repository.CartRepository.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

// NewCartRepository creates an empty cart repository.
func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]*domain.Cart)}
}

func (r *CartRepository) Get(_ context.Context, id string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[id]
	if !ok {
		return nil, apperrors.NotFound("cart", id)
	}
	return cloneCart(c), nil
}

func (r *CartRepository) Create(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[cart.ID]; ok {
		return apperrors.Conflict(fmt.Sprintf("cart %s already exists", cart.ID))
	}
	r.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (r *CartRepository) SaveIfVersion(_ context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.carts[cart.ID]
	if !ok {
		return false, apperrors.NotFound("cart", cart.ID)
	}
	if stored.Version != expectedVersion {
		return false, nil
	}
	cart.Version = expectedVersion + 1
	r.carts[cart.ID] = cloneCart(cart)
	return true, nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	out := *c
	out.LineItems = append([]domain.LineItem(nil), c.LineItems...)
	out.ShippingMethods = append([]domain.ShippingMethod(nil), c.ShippingMethods...)
	out.DiscountCodes = append([]string(nil), c.DiscountCodes...)
	out.GiftCardCodes = append([]string(nil), c.GiftCardCodes...)
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		out.ShippingAddress = &addr
	}
	if c.CompletedAt != nil {
		at := *c.CompletedAt
		out.CompletedAt = &at
	}
	out.Payment = nil
	return &out
}
