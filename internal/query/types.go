package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccountResponse is a projected account row. Amounts are wad decimal
// strings. AsOfSequence reports projection freshness: the live engine may
// already be ahead of it.
type AccountResponse struct {
	UserID       uuid.UUID         `json:"user_id"`
	Debt         string            `json:"debt"`
	Collateral   map[string]string `json:"collateral"`
	Version      int64             `json:"version"`
	LastSequence int64             `json:"last_sequence"`
	AsOfSequence int64             `json:"as_of_sequence"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// EventResponse is a row from the event log.
type EventResponse struct {
	Sequence    int64           `json:"sequence"`
	EventType   string          `json:"event_type"`
	OperationID string          `json:"operation_id"`
	UserID      *string         `json:"user_id,omitempty"`
	Asset       *string         `json:"asset,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`
}
