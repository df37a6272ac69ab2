package postgres

import (
	"context"

	"github.com/utafrali/commerce-engine/internal/domain"
	"github.com/utafrali/commerce-engine/pkg/database"
)

// EventLedger implements repository.EventLedger on the webhook_events table.
type EventLedger struct {
	db database.DBTX
}

// NewEventLedger creates a new PostgreSQL-backed webhook event ledger.
func NewEventLedger(db database.DBTX) *EventLedger {
	return &EventLedger{db: db}
}

const ledgerContainsSQL = `
		SELECT EXISTS (
			SELECT 1 FROM webhook_events WHERE provider = $1 AND event_id = $2
		)`

// Contains reports whether the event was already processed.
func (l *EventLedger) Contains(ctx context.Context, provider, eventID string) (found bool, err error) {
	ctx, end := database.TraceQuery(ctx, "LedgerContains", ledgerContainsSQL)
	defer func() { end(err) }()

	if err = l.db.QueryRow(ctx, ledgerContainsSQL, provider, eventID).Scan(&found); err != nil {
		return false, upstream("check webhook ledger", err)
	}
	return found, nil
}

const ledgerRecordSQL = `
		INSERT INTO webhook_events (provider, event_id, event_type, session_id, outcome, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, event_id) DO NOTHING`

// Record stores a processed event. Recording the same key twice keeps the
// first entry.
func (l *EventLedger) Record(ctx context.Context, e domain.LedgerEntry) (err error) {
	ctx, end := database.TraceQuery(ctx, "LedgerRecord", ledgerRecordSQL)
	defer func() { end(err) }()

	_, err = l.db.Exec(ctx, ledgerRecordSQL,
		e.Provider, e.EventID, e.EventType, e.SessionID, string(e.Outcome), e.ProcessedAt,
	)
	if err != nil {
		return upstream("record webhook event", err)
	}
	return nil
}
