// Package lock provides keyed mutual exclusion for the read-modify-write
// sections of the engine: carts, orders, payment sessions and webhook events.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrNotAcquired is returned when a lock could not be taken before the
// context was done or the wait budget ran out.
var ErrNotAcquired = errors.New("lock not acquired")

// Release frees a held lock. Calling it more than once is harmless.
type Release func()

// Locker serializes work on a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

var waitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "engine_lock_wait_seconds",
	Help:    "Time spent waiting to acquire a keyed lock.",
	Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
}, []string{"driver", "outcome"})

func observeWait(driver string, start time.Time, err error) {
	outcome := "acquired"
	if err != nil {
		outcome = "failed"
	}
	waitDuration.WithLabelValues(driver, outcome).Observe(time.Since(start).Seconds())
}

// Key helpers so every caller uses the same key for the same resource.

// CartKey returns the lock key for a cart.
func CartKey(cartID string) string { return "cart:" + cartID }

// OrderKey returns the lock key for an order.
func OrderKey(orderID string) string { return "order:" + orderID }

// PaymentSessionKey returns the lock key for a payment session.
func PaymentSessionKey(sessionID string) string { return "payment_session:" + sessionID }

// WebhookEventKey returns the lock key for a provider event.
func WebhookEventKey(provider, eventID string) string {
	return "webhook:" + provider + ":" + eventID
}
