package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/pkg/database"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// TransferRequestRepository implements repository.TransferRequestRepository.
type TransferRequestRepository struct {
	db database.DBTX
}

// NewTransferRequestRepository creates a new PostgreSQL-backed transfer request repository.
func NewTransferRequestRepository(db database.DBTX) *TransferRequestRepository {
	return &TransferRequestRepository{db: db}
}

const transferColumns = `id, order_id, requester_customer_id, requester_email, owner_email,
			   token_digest, status, created_at, expires_at, resolved_at`

const insertTransferSQL = `
		INSERT INTO transfer_requests (id, order_id, requester_customer_id, requester_email,
			owner_email, token_digest, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create inserts a pending request. The partial unique index on pending
// requests turns a concurrent second request into a Conflict.
func (r *TransferRequestRepository) Create(ctx context.Context, req *domain.TransferRequest) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateTransferRequest", insertTransferSQL)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertTransferSQL,
		req.ID, req.OrderID, req.RequesterCustomerID, req.RequesterEmail,
		req.OwnerEmail, req.TokenDigest, string(req.Status), req.CreatedAt, req.ExpiresAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("order %s already has a pending transfer request", req.OrderID))
		}
		return upstream("insert transfer request", err)
	}
	return nil
}

const getTransferSQL = `
		SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE id = $1`

// Get retrieves a transfer request by id.
func (r *TransferRequestRepository) Get(ctx context.Context, id string) (req *domain.TransferRequest, err error) {
	ctx, end := database.TraceQuery(ctx, "GetTransferRequest", getTransferSQL)
	defer func() { end(traceErr(err)) }()

	var out domain.TransferRequest
	if err = scanTransfer(r.db.QueryRow(ctx, getTransferSQL, id), &out); err != nil {
		return nil, notFoundOr(err, "transfer request", id, "get transfer request")
	}
	return &out, nil
}

const getPendingTransferSQL = `
		SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE order_id = $1 AND status = 'pending'`

// GetPendingByOrder returns the pending request of an order.
func (r *TransferRequestRepository) GetPendingByOrder(ctx context.Context, orderID string) (req *domain.TransferRequest, err error) {
	ctx, end := database.TraceQuery(ctx, "GetPendingTransferRequest", getPendingTransferSQL)
	defer func() { end(traceErr(err)) }()

	var out domain.TransferRequest
	if err = scanTransfer(r.db.QueryRow(ctx, getPendingTransferSQL, orderID), &out); err != nil {
		return nil, notFoundOr(err, "pending transfer request for order", orderID, "get pending transfer request")
	}
	return &out, nil
}

const (
	resolveTransferSQL = `
		UPDATE transfer_requests
		SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'`

	getTransferStatusSQL = `
		SELECT status FROM transfer_requests WHERE id = $1`
)

// Resolve moves a pending request to a terminal status.
func (r *TransferRequestRepository) Resolve(ctx context.Context, id string, status domain.TransferStatus, at time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "ResolveTransferRequest", resolveTransferSQL)
	defer func() { end(traceErr(err)) }()

	return resolveTransfer(ctx, r.db, id, status, at)
}

const reassignOrderSQL = `
		UPDATE orders
		SET customer_id = $2,
			email = CASE WHEN $3 = '' THEN email ELSE $3 END,
			updated_at = $4
		WHERE id = $1`

// Accept marks the request accepted and reassigns the order in one
// transaction.
func (r *TransferRequestRepository) Accept(ctx context.Context, req *domain.TransferRequest, at time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "AcceptTransferRequest", reassignOrderSQL)
	defer func() { end(traceErr(err)) }()

	err = database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := resolveTransfer(ctx, tx, req.ID, domain.TransferStatusAccepted, at); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, reassignOrderSQL, req.OrderID, req.RequesterCustomerID, req.RequesterEmail, at)
		if err != nil {
			return upstream("reassign order", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("order", req.OrderID)
		}
		return nil
	})
	if err != nil {
		return asAppError(err, "accept transfer request")
	}
	return nil
}

// resolveTransfer runs the conditional update on db, which may be a
// transaction, and reports the stored status when nothing was updated.
func resolveTransfer(ctx context.Context, db database.DBTX, id string, status domain.TransferStatus, at time.Time) error {
	tag, err := db.Exec(ctx, resolveTransferSQL, id, string(status), at)
	if err != nil {
		return upstream("resolve transfer request", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	if err := db.QueryRow(ctx, getTransferStatusSQL, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("transfer request", id)
		}
		return upstream("get transfer request status", err)
	}
	return apperrors.StateConflict(current, "transfer request is no longer pending")
}

const listPendingTransfersSQL = `
		SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

// ListPendingCreatedBefore returns up to limit pending requests created
// before the given time, oldest first.
func (r *TransferRequestRepository) ListPendingCreatedBefore(ctx context.Context, before time.Time, limit int) (reqs []domain.TransferRequest, err error) {
	ctx, end := database.TraceQuery(ctx, "ListPendingTransferRequests", listPendingTransfersSQL)
	defer func() { end(err) }()

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, listPendingTransfersSQL, before, limit)
	if err != nil {
		return nil, upstream("list pending transfer requests", err)
	}
	defer rows.Close()

	for rows.Next() {
		var req domain.TransferRequest
		if err := scanTransfer(rows, &req); err != nil {
			return nil, upstream("scan transfer request row", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("iterate transfer request rows", err)
	}
	return reqs, nil
}

func scanTransfer(row scanner, req *domain.TransferRequest) error {
	var status string
	if err := row.Scan(
		&req.ID, &req.OrderID, &req.RequesterCustomerID, &req.RequesterEmail, &req.OwnerEmail,
		&req.TokenDigest, &status, &req.CreatedAt, &req.ExpiresAt, &req.ResolvedAt,
	); err != nil {
		return err
	}
	req.Status = domain.TransferStatus(status)
	return nil
}
