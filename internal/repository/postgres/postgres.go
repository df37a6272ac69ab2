// Package postgres implements the engine repositories on PostgreSQL.
package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// upstream wraps a driver failure as a retryable upstream error.
func upstream(op string, err error) error {
	return apperrors.Upstream(fmt.Errorf("%s: %w", op, err))
}

// notFoundOr maps pgx.ErrNoRows to a NotFound error and anything else to an
// upstream error.
func notFoundOr(err error, resource, id, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NotFound(resource, id)
	}
	return upstream(op, err)
}

// traceErr drops NotFound errors so expected lookups misses do not mark
// spans as failed.
func traceErr(err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	return err
}

// asAppError passes AppErrors through and wraps anything else, such as a
// failed BEGIN or COMMIT, as an upstream error.
func asAppError(err error, op string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return upstream(op, err)
}
