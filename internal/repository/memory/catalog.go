// Package memory provides in-process repository implementations for
// development mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// RegionRepository implements repository.RegionRepository.
type RegionRepository struct {
	mu      sync.RWMutex
	regions map[string]domain.Region
}

// NewRegionRepository creates a region repository holding regions.
func NewRegionRepository(regions ...domain.Region) *RegionRepository {
	r := &RegionRepository{regions: make(map[string]domain.Region)}
	for _, reg := range regions {
		r.Put(reg)
	}
	return r
}

// Put inserts or replaces a region.
func (r *RegionRepository) Put(region domain.Region) {
	r.mu.Lock()
	defer r.mu.Unlock()
	region.Countries = append([]string(nil), region.Countries...)
	r.regions[region.ID] = region
}

func (r *RegionRepository) Get(_ context.Context, id string) (*domain.Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regions[id]
	if !ok {
		return nil, apperrors.NotFound("region", id)
	}
	reg.Countries = append([]string(nil), reg.Countries...)
	return &reg, nil
}

func (r *RegionRepository) List(_ context.Context) ([]domain.Region, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Region, 0, len(r.regions))
	for _, reg := range r.regions {
		reg.Countries = append([]string(nil), reg.Countries...)
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// VariantRepository implements repository.VariantRepository.
type VariantRepository struct {
	mu       sync.RWMutex
	variants map[string]domain.ProductVariant
}

// NewVariantRepository creates a variant repository holding variants.
func NewVariantRepository(variants ...domain.ProductVariant) *VariantRepository {
	r := &VariantRepository{variants: make(map[string]domain.ProductVariant)}
	for _, v := range variants {
		r.Put(v)
	}
	return r
}

// Put inserts or replaces a variant.
func (r *VariantRepository) Put(v domain.ProductVariant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v.Prices = append([]domain.Price(nil), v.Prices...)
	r.variants[v.ID] = v
}

func (r *VariantRepository) Get(_ context.Context, id string) (*domain.ProductVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[id]
	if !ok {
		return nil, apperrors.NotFound("variant", id)
	}
	v.Prices = append([]domain.Price(nil), v.Prices...)
	return &v, nil
}

func (r *VariantRepository) GetMany(_ context.Context, ids []string) (map[string]*domain.ProductVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*domain.ProductVariant, len(ids))
	for _, id := range ids {
		v, ok := r.variants[id]
		if !ok {
			continue
		}
		v.Prices = append([]domain.Price(nil), v.Prices...)
		out[id] = &v
	}
	return out, nil
}

// ShippingOptionRepository implements repository.ShippingOptionRepository.
type ShippingOptionRepository struct {
	mu      sync.RWMutex
	options map[string]domain.ShippingOption
}

// NewShippingOptionRepository creates a shipping option repository.
func NewShippingOptionRepository(options ...domain.ShippingOption) *ShippingOptionRepository {
	r := &ShippingOptionRepository{options: make(map[string]domain.ShippingOption)}
	for _, o := range options {
		r.options[o.ID] = o
	}
	return r
}

func (r *ShippingOptionRepository) Get(_ context.Context, id string) (*domain.ShippingOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.options[id]
	if !ok {
		return nil, apperrors.NotFound("shipping option", id)
	}
	return &o, nil
}

func (r *ShippingOptionRepository) ListByRegion(_ context.Context, regionID string) ([]domain.ShippingOption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ShippingOption
	for _, o := range r.options {
		if o.RegionID == regionID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GiftCardRepository implements repository.GiftCardRepository. Codes are
// matched case-insensitively.
type GiftCardRepository struct {
	mu    sync.RWMutex
	cards map[string]domain.GiftCard
}

// NewGiftCardRepository creates a gift card repository.
func NewGiftCardRepository(cards ...domain.GiftCard) *GiftCardRepository {
	r := &GiftCardRepository{cards: make(map[string]domain.GiftCard)}
	for _, c := range cards {
		r.Put(c)
	}
	return r
}

// Put inserts or replaces a gift card.
func (r *GiftCardRepository) Put(c domain.GiftCard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[strings.ToUpper(c.Code)] = c
}

func (r *GiftCardRepository) GetByCode(_ context.Context, code string) (*domain.GiftCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cards[strings.ToUpper(code)]
	if !ok {
		return nil, apperrors.NotFound("gift card", code)
	}
	return &c, nil
}

func (r *GiftCardRepository) GetManyByCode(_ context.Context, codes []string) ([]domain.GiftCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.GiftCard, 0, len(codes))
	for _, code := range codes {
		if c, ok := r.cards[strings.ToUpper(code)]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// DiscountRepository implements repository.DiscountRepository.
type DiscountRepository struct {
	mu        sync.RWMutex
	discounts map[string]domain.Discount
}

// NewDiscountRepository creates a discount repository.
func NewDiscountRepository(discounts ...domain.Discount) *DiscountRepository {
	r := &DiscountRepository{discounts: make(map[string]domain.Discount)}
	for _, d := range discounts {
		r.discounts[strings.ToUpper(d.Code)] = d
	}
	return r
}

func (r *DiscountRepository) GetByCode(_ context.Context, code string) (*domain.Discount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.discounts[strings.ToUpper(code)]
	if !ok {
		return nil, apperrors.NotFound("discount", code)
	}
	return &d, nil
}

func (r *DiscountRepository) IncrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToUpper(code)
	d, ok := r.discounts[key]
	if !ok {
		return apperrors.NotFound("discount", code)
	}
	d.UsageCount++
	r.discounts[key] = d
	return nil
}
