package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SynthLedger/internal/engine"

	"github.com/google/uuid"
)

// EventLogWriter writes sealed envelopes to Postgres using multi-row INSERT.
// Writes are idempotent on sequence, so a replayed batch after a crash is a
// no-op.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in event_log.events.
type EventRow struct {
	Sequence    int64
	EventType   string
	OperationID string
	UserID      *string
	Asset       *string
	Payload     []byte
	Timestamp   time.Time
}

// RowFromOutput converts an engine output into its storage row.
func RowFromOutput(out engine.Output) EventRow {
	env := out.Envelope
	row := EventRow{
		Sequence:    env.Sequence,
		EventType:   env.EventType.String(),
		OperationID: env.OperationID.String(),
		Asset:       env.Asset,
		Payload:     env.Payload,
		Timestamp:   env.Timestamp,
	}
	if env.UserID != uuid.Nil {
		userID := env.UserID.String()
		row.UserID = &userID
	}
	return row
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to event_log.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_type, operation_id, user_id, asset, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.Sequence, e.EventType, e.OperationID, e.UserID,
			e.Asset, e.Payload, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}
