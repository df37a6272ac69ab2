// Package service holds the engine's use cases. Every read-modify-write
// section runs under a keyed lock from pkg/lock; pure computations live in
// the pricing, totals and checkout packages.
package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
	"github.com/utafrali/commerce-engine/pkg/lock"
)

// acquire takes a keyed lock. Failing to get it is reported as an upstream
// error so callers may retry.
func acquire(ctx context.Context, locker lock.Locker, key string) (lock.Release, error) {
	release, err := locker.Acquire(ctx, key)
	if err != nil {
		return nil, apperrors.Upstream(fmt.Errorf("acquire lock %s: %w", key, err))
	}
	return release, nil
}

func utcNow() time.Time { return time.Now().UTC() }
