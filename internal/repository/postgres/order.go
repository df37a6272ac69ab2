package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/pkg/database"
)

// OrderRepository implements repository.OrderRepository.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const getOrderSQL = `
		SELECT id, display_id, cart_id, customer_id, email, region_id, currency_code,
			   items, totals, created_at, updated_at
		FROM orders
		WHERE id = $1`

// Get retrieves an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (o *domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, "GetOrder", getOrderSQL)
	defer func() { end(traceErr(err)) }()

	var (
		out    domain.Order
		items  []byte
		totals []byte
	)
	err = r.db.QueryRow(ctx, getOrderSQL, id).Scan(
		&out.ID, &out.DisplayID, &out.CartID, &out.CustomerID, &out.Email, &out.RegionID,
		&out.CurrencyCode, &items, &totals, &out.CreatedAt, &out.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "order", id, "get order")
	}
	if err := json.Unmarshal(items, &out.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(totals, &out.Totals); err != nil {
		return nil, fmt.Errorf("unmarshal order totals: %w", err)
	}
	return &out, nil
}

const insertOrderSQL = `
		INSERT INTO orders (id, cart_id, customer_id, email, region_id, currency_code,
			items, totals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING display_id`

// Create inserts an order and reports false when an order with the same id
// or cart already exists.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (created bool, err error) {
	ctx, end := database.TraceQuery(ctx, "CreateOrder", insertOrderSQL)
	defer func() { end(err) }()

	items := o.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return false, fmt.Errorf("marshal order items: %w", err)
	}
	totalsJSON, err := json.Marshal(o.Totals)
	if err != nil {
		return false, fmt.Errorf("marshal order totals: %w", err)
	}

	rows, err := r.db.Query(ctx, insertOrderSQL,
		o.ID, o.CartID, o.CustomerID, o.Email, o.RegionID, o.CurrencyCode,
		itemsJSON, totalsJSON, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return false, upstream("insert order", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&o.DisplayID); err != nil {
			return false, upstream("scan order display id", err)
		}
		created = true
	}
	if err := rows.Err(); err != nil {
		return false, upstream("insert order", err)
	}
	return created, nil
}
