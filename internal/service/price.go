package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/pricing"
	"github.com/utafrali/commerce-engine/internal/repository"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// MaxResolveVariants bounds a single price resolution request.
const MaxResolveVariants = 100

// ResolvePricesInput selects the variants and pricing context to resolve.
type ResolvePricesInput struct {
	VariantIDs   []string `json:"variant_ids" validate:"required,min=1,max=100,dive,required"`
	RegionID     string   `json:"region_id" validate:"required"`
	CurrencyCode string   `json:"currency_code,omitempty" validate:"omitempty,iso4217"`
	Quantity     int      `json:"quantity,omitempty" validate:"gte=0,lte=100"`
}

// VariantPrice is the resolved price of one variant.
type VariantPrice struct {
	VariantID string `json:"variant_id"`
	pricing.Result
	Display string `json:"display"`
}

// PriceService resolves catalog prices for listing and product pages.
type PriceService struct {
	regions  repository.RegionRepository
	variants repository.VariantRepository
}

// NewPriceService creates a new price service.
func NewPriceService(regions repository.RegionRepository, variants repository.VariantRepository) *PriceService {
	return &PriceService{regions: regions, variants: variants}
}

// Resolve prices variants in a region. The currency defaults to the
// region's. Unknown variants and unpriced ones come back unavailable, in
// request order.
func (s *PriceService) Resolve(ctx context.Context, input ResolvePricesInput) ([]VariantPrice, error) {
	if len(input.VariantIDs) == 0 {
		return nil, apperrors.InvalidInput("at least one variant id is required")
	}
	if len(input.VariantIDs) > MaxResolveVariants {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d variants can be resolved at once", MaxResolveVariants))
	}

	region, err := s.regions.Get(ctx, input.RegionID)
	if err != nil {
		return nil, fmt.Errorf("get region: %w", err)
	}
	currency := strings.TrimSpace(input.CurrencyCode)
	if currency == "" {
		currency = region.CurrencyCode
	}

	variants, err := s.variants.GetMany(ctx, input.VariantIDs)
	if err != nil {
		return nil, fmt.Errorf("get variants: %w", err)
	}

	pc := pricing.Context{RegionID: region.ID, Currency: currency, Quantity: input.Quantity}
	found := make([]*domain.ProductVariant, 0, len(variants))
	for _, v := range variants {
		found = append(found, v)
	}
	results := pricing.ResolveMany(found, pc)

	out := make([]VariantPrice, 0, len(input.VariantIDs))
	for _, id := range input.VariantIDs {
		res, ok := results[id]
		if !ok {
			res = pricing.Resolve(nil, pc)
		}
		out = append(out, VariantPrice{VariantID: id, Result: res, Display: pricing.Display(res)})
	}
	return out, nil
}
