package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/pkg/database"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// PaymentSessionRepository implements repository.PaymentSessionRepository.
type PaymentSessionRepository struct {
	db database.DBTX
}

// NewPaymentSessionRepository creates a new PostgreSQL-backed payment session repository.
func NewPaymentSessionRepository(db database.DBTX) *PaymentSessionRepository {
	return &PaymentSessionRepository{db: db}
}

const paymentSessionColumns = `id, cart_id, provider_code, provider_reference, data, amount,
			   currency_code, status, is_selected, created_at, updated_at`

const insertPaymentSessionSQL = `
		INSERT INTO payment_sessions (id, cart_id, provider_code, provider_reference, data, amount,
			currency_code, status, is_selected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Create inserts a new payment session.
func (r *PaymentSessionRepository) Create(ctx context.Context, s *domain.PaymentSession) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreatePaymentSession", insertPaymentSessionSQL)
	defer func() { end(err) }()

	var data []byte
	if len(s.Data) > 0 {
		data = s.Data
	}
	_, err = r.db.Exec(ctx, insertPaymentSessionSQL,
		s.ID, s.CartID, s.ProviderCode, s.ProviderReference, data, s.Amount,
		s.CurrencyCode, string(s.Status), s.IsSelected, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("payment session %s already exists", s.ID))
		}
		return upstream("insert payment session", err)
	}
	return nil
}

const getPaymentSessionSQL = `
		SELECT ` + paymentSessionColumns + `
		FROM payment_sessions
		WHERE id = $1`

// Get retrieves a payment session by id.
func (r *PaymentSessionRepository) Get(ctx context.Context, id string) (s *domain.PaymentSession, err error) {
	ctx, end := database.TraceQuery(ctx, "GetPaymentSession", getPaymentSessionSQL)
	defer func() { end(traceErr(err)) }()

	var out domain.PaymentSession
	if err = scanPaymentSession(r.db.QueryRow(ctx, getPaymentSessionSQL, id), &out); err != nil {
		return nil, notFoundOr(err, "payment session", id, "get payment session")
	}
	return &out, nil
}

const listPaymentSessionsSQL = `
		SELECT ` + paymentSessionColumns + `
		FROM payment_sessions
		WHERE cart_id = $1
		ORDER BY created_at, id`

// ListByCart returns the sessions of a cart, oldest first.
func (r *PaymentSessionRepository) ListByCart(ctx context.Context, cartID string) (sessions []domain.PaymentSession, err error) {
	ctx, end := database.TraceQuery(ctx, "ListPaymentSessions", listPaymentSessionsSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listPaymentSessionsSQL, cartID)
	if err != nil {
		return nil, upstream("list payment sessions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.PaymentSession
		if err := scanPaymentSession(rows, &s); err != nil {
			return nil, upstream("scan payment session row", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("iterate payment session rows", err)
	}
	return sessions, nil
}

const getPaymentSessionByReferenceSQL = `
		SELECT ` + paymentSessionColumns + `
		FROM payment_sessions
		WHERE provider_code = $1
		  AND (id = $2 OR (provider_reference <> '' AND provider_reference = $2))
		LIMIT 1`

// GetByReference finds a session of a provider by provider reference or id.
func (r *PaymentSessionRepository) GetByReference(ctx context.Context, provider, reference string) (s *domain.PaymentSession, err error) {
	ctx, end := database.TraceQuery(ctx, "GetPaymentSessionByReference", getPaymentSessionByReferenceSQL)
	defer func() { end(traceErr(err)) }()

	var out domain.PaymentSession
	if err = scanPaymentSession(r.db.QueryRow(ctx, getPaymentSessionByReferenceSQL, provider, reference), &out); err != nil {
		return nil, notFoundOr(err, "payment session", reference, "get payment session by reference")
	}
	return &out, nil
}

const updatePaymentSessionStatusSQL = `
		UPDATE payment_sessions
		SET status = $2, updated_at = $3
		WHERE id = $1`

// UpdateStatus sets the status of a session.
func (r *PaymentSessionRepository) UpdateStatus(ctx context.Context, id string, status domain.PaymentStatus, at time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "UpdatePaymentSessionStatus", updatePaymentSessionStatusSQL)
	defer func() { end(traceErr(err)) }()

	tag, err := r.db.Exec(ctx, updatePaymentSessionStatusSQL, id, string(status), at)
	if err != nil {
		return upstream("update payment session status", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("payment session", id)
	}
	return nil
}

const (
	clearSelectedSessionSQL = `
		UPDATE payment_sessions
		SET is_selected = FALSE
		WHERE cart_id = $1 AND is_selected AND id <> $2`

	selectSessionSQL = `
		UPDATE payment_sessions
		SET is_selected = TRUE
		WHERE cart_id = $1 AND id = $2`
)

// Select marks one session of a cart as selected in a single transaction.
func (r *PaymentSessionRepository) Select(ctx context.Context, cartID, sessionID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "SelectPaymentSession", selectSessionSQL)
	defer func() { end(traceErr(err)) }()

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, clearSelectedSessionSQL, cartID, sessionID); err != nil {
			return upstream("clear selected payment session", err)
		}
		tag, err := tx.Exec(ctx, selectSessionSQL, cartID, sessionID)
		if err != nil {
			return upstream("select payment session", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("payment session", sessionID)
		}
		return nil
	})
	if err != nil {
		return asAppError(err, "select payment session")
	}
	return nil
}

func scanPaymentSession(row scanner, s *domain.PaymentSession) error {
	var (
		status string
		data   []byte
	)
	if err := row.Scan(
		&s.ID, &s.CartID, &s.ProviderCode, &s.ProviderReference, &data, &s.Amount,
		&s.CurrencyCode, &status, &s.IsSelected, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return err
	}
	s.Status = domain.PaymentStatus(status)
	if len(data) > 0 {
		s.Data = data
	}
	return nil
}
