package repository

import (
	"context"
	"time"

	"github.com/utafrali/commerce-engine/internal/domain"
)

// Lookups return a NotFound AppError when the entity does not exist. Any
// other failure of the backing store is returned wrapped as an Upstream error.

// RegionRepository reads region reference data.
type RegionRepository interface {
	Get(ctx context.Context, id string) (*domain.Region, error)
	List(ctx context.Context) ([]domain.Region, error)
}

// VariantRepository reads product variants with their prices.
type VariantRepository interface {
	Get(ctx context.Context, id string) (*domain.ProductVariant, error)
	// GetMany returns the variants that exist, keyed by id. Missing ids are
	// simply absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]*domain.ProductVariant, error)
}

// ShippingOptionRepository reads shipping options.
type ShippingOptionRepository interface {
	Get(ctx context.Context, id string) (*domain.ShippingOption, error)
	ListByRegion(ctx context.Context, regionID string) ([]domain.ShippingOption, error)
}

// GiftCardRepository reads gift cards.
type GiftCardRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.GiftCard, error)
	// GetManyByCode returns the gift cards found, in the order of codes.
	GetManyByCode(ctx context.Context, codes []string) ([]domain.GiftCard, error)
}

// DiscountRepository reads discount rules and tracks their usage.
type DiscountRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Discount, error)
	IncrementUsage(ctx context.Context, code string) error
}

// CartRepository persists carts with optimistic versioning.
type CartRepository interface {
	Get(ctx context.Context, id string) (*domain.Cart, error)
	// Create stores a new cart. It fails with a Conflict error if the id exists.
	Create(ctx context.Context, cart *domain.Cart) error
	// SaveIfVersion stores the cart only if the stored version equals
	// expectedVersion, bumping cart.Version on success.
	SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error)
}

// PaymentSessionRepository persists payment sessions.
type PaymentSessionRepository interface {
	Create(ctx context.Context, s *domain.PaymentSession) error
	Get(ctx context.Context, id string) (*domain.PaymentSession, error)
	ListByCart(ctx context.Context, cartID string) ([]domain.PaymentSession, error)
	// GetByReference finds a session of a provider by its provider
	// reference or by its own id.
	GetByReference(ctx context.Context, provider, reference string) (*domain.PaymentSession, error)
	UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) error
	// Select marks one session of the cart as selected and clears the flag
	// on every other session of the cart atomically.
	Select(ctx context.Context, cartID, sessionID string) error
}

// OrderRepository persists the order read model.
type OrderRepository interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	// Create stores an order and reports false if it already existed.
	Create(ctx context.Context, o *domain.Order) (bool, error)
}

// TransferRequestRepository persists order transfer requests.
type TransferRequestRepository interface {
	// Create stores a pending request. It fails with a Conflict error when the
	// order already has a pending request.
	Create(ctx context.Context, req *domain.TransferRequest) error
	Get(ctx context.Context, id string) (*domain.TransferRequest, error)
	GetPendingByOrder(ctx context.Context, orderID string) (*domain.TransferRequest, error)
	// Resolve moves a pending request to a terminal status. It fails with a
	// StateConflict error carrying the stored status if the request is no
	// longer pending.
	Resolve(ctx context.Context, id string, status domain.TransferStatus, at time.Time) error
	// Accept marks a pending request accepted and reassigns the order to the
	// requester in one transaction.
	Accept(ctx context.Context, req *domain.TransferRequest, at time.Time) error
	ListPendingCreatedBefore(ctx context.Context, before time.Time, limit int) ([]domain.TransferRequest, error)
}

// EventLedger is the webhook dedupe ledger keyed by (provider, event id).
type EventLedger interface {
	Contains(ctx context.Context, provider, eventID string) (bool, error)
	Record(ctx context.Context, entry domain.LedgerEntry) error
}
