package memory

import (
	"context"
	"sync"

	"github.com/utafrali/commerce-engine/internal/domain"
)

type ledgerKey struct {
	provider string
	eventID  string
}

// EventLedger implements repository.EventLedger.
type EventLedger struct {
	mu      sync.RWMutex
	entries map[ledgerKey]domain.LedgerEntry
}

// NewEventLedger creates an empty ledger.
func NewEventLedger() *EventLedger {
	return &EventLedger{entries: make(map[ledgerKey]domain.LedgerEntry)}
}

func (l *EventLedger) Contains(_ context.Context, provider, eventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[ledgerKey{provider, eventID}]
	return ok, nil
}

// Record keeps the first entry for a key.
func (l *EventLedger) Record(_ context.Context, entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey{entry.Provider, entry.EventID}
	if _, ok := l.entries[key]; !ok {
		l.entries[key] = entry
	}
	return nil
}

// Len returns the number of recorded events.
func (l *EventLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
