package event

import "github.com/google/uuid"

// AccountLiquidated records a completed liquidation: debt repaid by the
// liquidator and the bonus-adjusted collateral payout transferred to them.
type AccountLiquidated struct {
	OpID             uuid.UUID `json:"op_id"`
	Liquidator       uuid.UUID `json:"liquidator_id"`
	Target           uuid.UUID `json:"target_id"`
	AssetSymbol      string    `json:"asset"`
	DebtCovered      string    `json:"debt_covered"`
	CollateralPayout string    `json:"collateral_payout"`
	BonusCollateral  string    `json:"bonus_collateral"`
	HealthBefore     string    `json:"health_factor_before"`
	HealthAfter      string    `json:"health_factor_after"`
}

func (e *AccountLiquidated) OperationID() uuid.UUID { return e.OpID }
func (e *AccountLiquidated) EventType() EventType   { return EventTypeAccountLiquidated }

// UserID returns the target, the account whose state changed.
func (e *AccountLiquidated) UserID() uuid.UUID { return e.Target }
func (e *AccountLiquidated) Asset() *string    { return &e.AssetSymbol }
