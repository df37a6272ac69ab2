// Package discount evaluates discount codes against a cart.
package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/internal/repository"
	"github.com/utafrali/commerce-engine/internal/totals"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// Evaluator returns the reduction a discount code contributes to a cart.
// An inapplicable code yields an InvalidInput error.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, cart *domain.Cart, base totals.Base) (int64, error)
}

// RuleEvaluator evaluates codes stored in a DiscountRepository.
type RuleEvaluator struct {
	repo repository.DiscountRepository
	now  func() time.Time
}

// NewRuleEvaluator creates a RuleEvaluator. A nil clock uses time.Now.
func NewRuleEvaluator(repo repository.DiscountRepository, now func() time.Time) *RuleEvaluator {
	if now == nil {
		now = time.Now
	}
	return &RuleEvaluator{repo: repo, now: now}
}

// Evaluate checks the rule's active window, usage limit and minimum order
// amount, then computes the reduction.
func (e *RuleEvaluator) Evaluate(ctx context.Context, code string, cart *domain.Cart, base totals.Base) (int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, apperrors.InvalidInput("discount code is required")
	}

	d, err := e.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return 0, apperrors.InvalidInput(fmt.Sprintf("discount code %s is not valid", code))
		}
		return 0, fmt.Errorf("get discount %s: %w", code, err)
	}

	if err := e.check(d, base); err != nil {
		return 0, err
	}
	return Amount(d, base), nil
}

func (e *RuleEvaluator) check(d *domain.Discount, base totals.Base) error {
	now := e.now().UTC()

	if !d.IsActive {
		return apperrors.InvalidInput(fmt.Sprintf("discount %s is not active", d.Code))
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return apperrors.InvalidInput(fmt.Sprintf("discount %s has not started yet", d.Code))
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return apperrors.InvalidInput(fmt.Sprintf("discount %s has expired", d.Code))
	}
	if d.UsageLimit > 0 && d.UsageCount >= d.UsageLimit {
		return apperrors.InvalidInput(fmt.Sprintf("discount %s usage limit reached", d.Code))
	}
	if d.MinOrderAmount > 0 && base.Subtotal < d.MinOrderAmount {
		return apperrors.InvalidInput(fmt.Sprintf("discount %s requires a minimum order amount of %d", d.Code, d.MinOrderAmount))
	}
	return nil
}

// Amount computes the reduction of a rule without checking its validity.
func Amount(d *domain.Discount, base totals.Base) int64 {
	switch d.Type {
	case domain.DiscountTypePercentage:
		// Value is in basis points: 1000 = 10%.
		amount := base.Subtotal * d.Value / 10000
		if d.MaxAmount > 0 && amount > d.MaxAmount {
			amount = d.MaxAmount
		}
		return amount

	case domain.DiscountTypeFixedAmount:
		if d.Value > base.Subtotal {
			return base.Subtotal
		}
		return d.Value

	case domain.DiscountTypeFreeShipping:
		return base.ShippingTotal

	default:
		return 0
	}
}
