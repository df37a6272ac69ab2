package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/commerce-engine/internal/domain"
	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

const ledgerPrefix = "webhook:ledger:"

// EventLedger implements repository.EventLedger on Redis keys that expire
// after the retention window. Providers stop redelivering long before that.
type EventLedger struct {
	client    *redis.Client
	retention time.Duration
}

// NewEventLedger creates a Redis-backed ledger.
func NewEventLedger(client *redis.Client, retention time.Duration) *EventLedger {
	return &EventLedger{client: client, retention: retention}
}

func ledgerKey(provider, eventID string) string {
	return ledgerPrefix + provider + ":" + eventID
}

// Contains reports whether the event has been recorded.
func (l *EventLedger) Contains(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := l.client.Exists(ctx, ledgerKey(provider, eventID)).Result()
	if err != nil {
		return false, apperrors.Upstream(fmt.Errorf("redis exists ledger entry: %w", err))
	}
	return n > 0, nil
}

// Record stores the entry, keeping the first one written for a key.
func (l *EventLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}
	if err := l.client.SetNX(ctx, ledgerKey(entry.Provider, entry.EventID), data, l.retention).Err(); err != nil {
		return apperrors.Upstream(fmt.Errorf("redis record ledger entry: %w", err))
	}
	return nil
}

// Entry returns the recorded entry for an event.
func (l *EventLedger) Entry(ctx context.Context, provider, eventID string) (*domain.LedgerEntry, error) {
	data, err := l.client.Get(ctx, ledgerKey(provider, eventID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("ledger entry", provider+":"+eventID)
		}
		return nil, apperrors.Upstream(fmt.Errorf("redis get ledger entry: %w", err))
	}
	var entry domain.LedgerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal ledger entry: %w", err)
	}
	return &entry, nil
}
