package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

const keyPrefix = "cart:"

// CartRepository implements repository.CartRepository using Redis. Each cart
// is a JSON document whose TTL is refreshed on every write.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cart by id.
func (r *CartRepository) Get(ctx context.Context, id string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", id)
		}
		return nil, apperrors.Upstream(fmt.Errorf("redis get cart: %w", err))
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	return &cart, nil
}

// Create stores a new cart unless the id is taken.
func (r *CartRepository) Create(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	ok, err := r.client.SetNX(ctx, keyPrefix+cart.ID, data, r.ttl).Result()
	if err != nil {
		return apperrors.Upstream(fmt.Errorf("redis create cart: %w", err))
	}
	if !ok {
		return apperrors.Conflict(fmt.Sprintf("cart %s already exists", cart.ID))
	}
	return nil
}

// SaveIfVersion writes the cart inside a WATCH transaction so a concurrent
// writer that bumped the version makes this save fail instead of overwrite.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expectedVersion int) (bool, error) {
	key := keyPrefix + cart.ID
	saved := false

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return apperrors.NotFound("cart", cart.ID)
			}
			return apperrors.Upstream(fmt.Errorf("redis get cart: %w", err))
		}

		var stored struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("unmarshal cart version: %w", err)
		}
		if stored.Version != expectedVersion {
			return nil
		}

		next := *cart
		next.Version = expectedVersion + 1
		payload, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		}); err != nil {
			return err
		}

		cart.Version = next.Version
		saved = true
		return nil
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err == nil:
		return saved, nil
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return false, err
		}
		return false, apperrors.Upstream(fmt.Errorf("redis save cart: %w", err))
	}
}
