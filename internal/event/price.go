package event

import "github.com/google/uuid"

// PriceUpdated records a feed observation applied to the feed store.
// Price is at the feed's native decimal precision.
type PriceUpdated struct {
	OpID        uuid.UUID `json:"op_id"`
	FeedID      string    `json:"feed_id"`
	AssetSymbol string    `json:"asset"`
	Price       string    `json:"price"`
	Decimals    uint8     `json:"decimals"`
	TimestampUs int64     `json:"timestamp_us"`
}

func (e *PriceUpdated) OperationID() uuid.UUID { return e.OpID }
func (e *PriceUpdated) EventType() EventType   { return EventTypePriceUpdated }
func (e *PriceUpdated) UserID() uuid.UUID      { return uuid.Nil }
func (e *PriceUpdated) Asset() *string         { return &e.AssetSymbol }
