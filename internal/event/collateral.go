package event

import "github.com/google/uuid"

// CollateralDeposited records a completed deposit. Amounts are wad decimal
// strings so the payload survives JSON encoding without precision loss.
type CollateralDeposited struct {
	OpID            uuid.UUID `json:"op_id"`
	User            uuid.UUID `json:"user_id"`
	AssetSymbol     string    `json:"asset"`
	Quantity        string    `json:"quantity"`
	ResultingAmount string    `json:"resulting_balance"`
}

func (e *CollateralDeposited) OperationID() uuid.UUID { return e.OpID }
func (e *CollateralDeposited) EventType() EventType   { return EventTypeCollateralDeposited }
func (e *CollateralDeposited) UserID() uuid.UUID      { return e.User }
func (e *CollateralDeposited) Asset() *string         { return &e.AssetSymbol }

// CollateralRedeemed records a completed redeem back to the user.
type CollateralRedeemed struct {
	OpID            uuid.UUID `json:"op_id"`
	User            uuid.UUID `json:"user_id"`
	AssetSymbol     string    `json:"asset"`
	Quantity        string    `json:"quantity"`
	ResultingAmount string    `json:"resulting_balance"`
}

func (e *CollateralRedeemed) OperationID() uuid.UUID { return e.OpID }
func (e *CollateralRedeemed) EventType() EventType   { return EventTypeCollateralRedeemed }
func (e *CollateralRedeemed) UserID() uuid.UUID      { return e.User }
func (e *CollateralRedeemed) Asset() *string         { return &e.AssetSymbol }
