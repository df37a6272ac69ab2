package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/pkg/database"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// RegionRepository implements repository.RegionRepository.
type RegionRepository struct {
	db database.DBTX
}

// NewRegionRepository creates a new PostgreSQL-backed region repository.
func NewRegionRepository(db database.DBTX) *RegionRepository {
	return &RegionRepository{db: db}
}

const getRegionSQL = `
		SELECT id, name, locale, currency_code, countries
		FROM regions
		WHERE id = $1`

// Get retrieves a region by id.
func (r *RegionRepository) Get(ctx context.Context, id string) (reg *domain.Region, err error) {
	ctx, end := database.TraceQuery(ctx, "GetRegion", getRegionSQL)
	defer func() { end(traceErr(err)) }()

	var out domain.Region
	err = r.db.QueryRow(ctx, getRegionSQL, id).Scan(
		&out.ID, &out.Name, &out.Locale, &out.CurrencyCode, &out.Countries,
	)
	if err != nil {
		return nil, notFoundOr(err, "region", id, "get region")
	}
	out.CurrencyCode = strings.ToUpper(strings.TrimSpace(out.CurrencyCode))
	return &out, nil
}

const listRegionsSQL = `
		SELECT id, name, locale, currency_code, countries
		FROM regions
		ORDER BY id`

// List returns every region.
func (r *RegionRepository) List(ctx context.Context) (regions []domain.Region, err error) {
	ctx, end := database.TraceQuery(ctx, "ListRegions", listRegionsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listRegionsSQL)
	if err != nil {
		return nil, upstream("list regions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reg domain.Region
		if err := rows.Scan(&reg.ID, &reg.Name, &reg.Locale, &reg.CurrencyCode, &reg.Countries); err != nil {
			return nil, upstream("scan region row", err)
		}
		reg.CurrencyCode = strings.ToUpper(strings.TrimSpace(reg.CurrencyCode))
		regions = append(regions, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("iterate region rows", err)
	}
	return regions, nil
}

// VariantRepository implements repository.VariantRepository.
type VariantRepository struct {
	db database.DBTX
}

// NewVariantRepository creates a new PostgreSQL-backed variant repository.
func NewVariantRepository(db database.DBTX) *VariantRepository {
	return &VariantRepository{db: db}
}

const getVariantsSQL = `
		SELECT v.id, v.product_id, v.sku, v.title,
			   p.id, p.amount, p.currency_code, p.min_quantity, p.max_quantity,
			   p.region_id, p.price_list_id
		FROM product_variants v
		LEFT JOIN prices p ON p.variant_id = v.id
		WHERE v.id = ANY($1)
		ORDER BY v.id, p.position, p.id`

// Get retrieves a variant with its prices.
func (r *VariantRepository) Get(ctx context.Context, id string) (*domain.ProductVariant, error) {
	variants, err := r.GetMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	v, ok := variants[id]
	if !ok {
		return nil, apperrors.NotFound("variant", id)
	}
	return v, nil
}

// GetMany retrieves variants with their prices in insertion order.
func (r *VariantRepository) GetMany(ctx context.Context, ids []string) (out map[string]*domain.ProductVariant, err error) {
	out = make(map[string]*domain.ProductVariant, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, end := database.TraceQuery(ctx, "GetVariants", getVariantsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, getVariantsSQL, ids)
	if err != nil {
		return nil, upstream("get variants", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v         domain.ProductVariant
			priceID   *string
			amount    *int64
			currency  *string
			minQty    *int
			maxQty    *int
			regionID  *string
			priceList *string
		)
		if err := rows.Scan(
			&v.ID, &v.ProductID, &v.SKU, &v.Title,
			&priceID, &amount, &currency, &minQty, &maxQty, &regionID, &priceList,
		); err != nil {
			return nil, upstream("scan variant row", err)
		}

		existing, ok := out[v.ID]
		if !ok {
			existing = &v
			out[v.ID] = existing
		}
		if priceID == nil {
			continue
		}
		existing.Prices = append(existing.Prices, domain.Price{
			ID:           *priceID,
			Amount:       deref(amount),
			CurrencyCode: strings.ToUpper(strings.TrimSpace(deref(currency))),
			MinQuantity:  deref(minQty),
			MaxQuantity:  deref(maxQty),
			RegionID:     deref(regionID),
			PriceListID:  deref(priceList),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("iterate variant rows", err)
	}
	return out, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ShippingOptionRepository implements repository.ShippingOptionRepository.
type ShippingOptionRepository struct {
	db database.DBTX
}

// NewShippingOptionRepository creates a new PostgreSQL-backed shipping option repository.
func NewShippingOptionRepository(db database.DBTX) *ShippingOptionRepository {
	return &ShippingOptionRepository{db: db}
}

const getShippingOptionSQL = `
		SELECT id, region_id, name, amount
		FROM shipping_options
		WHERE id = $1`

// Get retrieves a shipping option by id.
func (r *ShippingOptionRepository) Get(ctx context.Context, id string) (opt *domain.ShippingOption, err error) {
	ctx, end := database.TraceQuery(ctx, "GetShippingOption", getShippingOptionSQL)
	defer func() { end(traceErr(err)) }()

	var o domain.ShippingOption
	if err = r.db.QueryRow(ctx, getShippingOptionSQL, id).Scan(&o.ID, &o.RegionID, &o.Name, &o.Amount); err != nil {
		return nil, notFoundOr(err, "shipping option", id, "get shipping option")
	}
	return &o, nil
}

const listShippingOptionsSQL = `
		SELECT id, region_id, name, amount
		FROM shipping_options
		WHERE region_id = $1
		ORDER BY amount, id`

// ListByRegion returns the shipping options of a region, cheapest first.
func (r *ShippingOptionRepository) ListByRegion(ctx context.Context, regionID string) (opts []domain.ShippingOption, err error) {
	ctx, end := database.TraceQuery(ctx, "ListShippingOptions", listShippingOptionsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listShippingOptionsSQL, regionID)
	if err != nil {
		return nil, upstream("list shipping options", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.ShippingOption
		if err := rows.Scan(&o.ID, &o.RegionID, &o.Name, &o.Amount); err != nil {
			return nil, upstream("scan shipping option row", err)
		}
		opts = append(opts, o)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("iterate shipping option rows", err)
	}
	return opts, nil
}

// GiftCardRepository implements repository.GiftCardRepository.
type GiftCardRepository struct {
	db database.DBTX
}

// NewGiftCardRepository creates a new PostgreSQL-backed gift card repository.
func NewGiftCardRepository(db database.DBTX) *GiftCardRepository {
	return &GiftCardRepository{db: db}
}

const giftCardColumns = `id, code, balance, currency_code, COALESCE(region_id, ''), is_disabled, ends_at`

const getGiftCardSQL = `
		SELECT ` + giftCardColumns + `
		FROM gift_cards
		WHERE UPPER(code) = UPPER($1)`

// GetByCode retrieves a gift card by code, case-insensitively.
func (r *GiftCardRepository) GetByCode(ctx context.Context, code string) (gc *domain.GiftCard, err error) {
	ctx, end := database.TraceQuery(ctx, "GetGiftCard", getGiftCardSQL)
	defer func() { end(traceErr(err)) }()

	var c domain.GiftCard
	if err = scanGiftCard(r.db.QueryRow(ctx, getGiftCardSQL, code), &c); err != nil {
		return nil, notFoundOr(err, "gift card", code, "get gift card")
	}
	return &c, nil
}

const getGiftCardsSQL = `
		SELECT ` + giftCardColumns + `
		FROM gift_cards
		WHERE UPPER(code) = ANY($1)`

// GetManyByCode returns the gift cards found, ordered like codes.
func (r *GiftCardRepository) GetManyByCode(ctx context.Context, codes []string) (cards []domain.GiftCard, err error) {
	if len(codes) == 0 {
		return nil, nil
	}
	ctx, end := database.TraceQuery(ctx, "GetGiftCards", getGiftCardsSQL)
	defer func() { end(err) }()

	upper := make([]string, len(codes))
	for i, c := range codes {
		upper[i] = strings.ToUpper(c)
	}

	rows, err := r.db.Query(ctx, getGiftCardsSQL, upper)
	if err != nil {
		return nil, upstream("get gift cards", err)
	}
	defer rows.Close()

	byCode := make(map[string]domain.GiftCard, len(codes))
	for rows.Next() {
		var c domain.GiftCard
		if err := scanGiftCard(rows, &c); err != nil {
			return nil, upstream("scan gift card row", err)
		}
		byCode[strings.ToUpper(c.Code)] = c
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("iterate gift card rows", err)
	}

	for _, code := range upper {
		if c, ok := byCode[code]; ok {
			cards = append(cards, c)
		}
	}
	return cards, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGiftCard(row scanner, c *domain.GiftCard) error {
	var endsAt *time.Time
	if err := row.Scan(&c.ID, &c.Code, &c.Balance, &c.CurrencyCode, &c.RegionID, &c.IsDisabled, &endsAt); err != nil {
		return err
	}
	c.CurrencyCode = strings.ToUpper(strings.TrimSpace(c.CurrencyCode))
	c.EndsAt = endsAt
	return nil
}

// DiscountRepository implements repository.DiscountRepository.
type DiscountRepository struct {
	db database.DBTX
}

// NewDiscountRepository creates a new PostgreSQL-backed discount repository.
func NewDiscountRepository(db database.DBTX) *DiscountRepository {
	return &DiscountRepository{db: db}
}

const getDiscountSQL = `
		SELECT id, code, type, value, max_amount, min_order_amount,
			   usage_limit, usage_count, is_active, starts_at, ends_at, created_at
		FROM discounts
		WHERE UPPER(code) = UPPER($1)`

// GetByCode retrieves a discount by code, case-insensitively.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (d *domain.Discount, err error) {
	ctx, end := database.TraceQuery(ctx, "GetDiscount", getDiscountSQL)
	defer func() { end(traceErr(err)) }()

	var out domain.Discount
	err = r.db.QueryRow(ctx, getDiscountSQL, code).Scan(
		&out.ID, &out.Code, &out.Type, &out.Value, &out.MaxAmount, &out.MinOrderAmount,
		&out.UsageLimit, &out.UsageCount, &out.IsActive, &out.StartsAt, &out.EndsAt, &out.CreatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "discount", code, "get discount")
	}
	return &out, nil
}

const incrementDiscountUsageSQL = `
		UPDATE discounts
		SET usage_count = usage_count + 1
		WHERE UPPER(code) = UPPER($1)`

// IncrementUsage bumps the usage counter of a discount.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, code string) (err error) {
	ctx, end := database.TraceQuery(ctx, "IncrementDiscountUsage", incrementDiscountUsageSQL)
	defer func() { end(traceErr(err)) }()

	tag, err := r.db.Exec(ctx, incrementDiscountUsageSQL, code)
	if err != nil {
		return upstream("increment discount usage", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("discount", code)
	}
	return nil
}
