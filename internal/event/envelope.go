package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeCollateralDeposited
	EventTypeSyntheticMinted
	EventTypeCollateralRedeemed
	EventTypeSyntheticBurned
	EventTypeAccountLiquidated
	EventTypePriceUpdated
)

// Envelope wraps every event in the operation log.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Operation identity (stable dedup key for the log)
	OperationID uuid.UUID

	// Event type discriminator
	EventType EventType

	// Acting user (uuid.Nil for global events such as price updates)
	UserID uuid.UUID

	// Asset context (nil for asset-less events)
	Asset *string

	// Wall-clock time the operation completed
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte
}

// Event is the interface all event payloads implement.
type Event interface {
	// OperationID returns the stable identity of the originating operation
	OperationID() uuid.UUID

	// EventType returns the discriminator
	EventType() EventType

	// UserID returns the acting user (uuid.Nil for global events)
	UserID() uuid.UUID

	// Asset returns the asset context (nil for asset-less events)
	Asset() *string
}

func (et EventType) String() string {
	switch et {
	case EventTypeCollateralDeposited:
		return "CollateralDeposited"
	case EventTypeSyntheticMinted:
		return "SyntheticMinted"
	case EventTypeCollateralRedeemed:
		return "CollateralRedeemed"
	case EventTypeSyntheticBurned:
		return "SyntheticBurned"
	case EventTypeAccountLiquidated:
		return "AccountLiquidated"
	case EventTypePriceUpdated:
		return "PriceUpdated"
	default:
		return "Unknown"
	}
}
