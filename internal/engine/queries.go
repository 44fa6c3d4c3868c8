package engine

import (
	"SynthLedger/internal/ledger"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// The query surface is read-only and side-effect free. Queries take the
// engine mutex so a reader always observes a fully applied state, never a
// mid-operation intermediate.

// AccountInformation returns user's total minted debt and the current USD
// value of their deposited collateral.
func (e *Engine) AccountInformation(user uuid.UUID) (debt, collateralValue *uint256.Int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	debt = e.ledger.Debt(user)
	collateralValue, err = e.totalCollateralValue(user)
	if err != nil {
		return nil, nil, err
	}
	return debt, collateralValue, nil
}

// UsdValue returns the USD wad value of qty units of asset at the current
// feed price.
func (e *Engine) UsdValue(asset string, qty *uint256.Int) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.asset(asset)
	if err != nil {
		return nil, err
	}
	return e.usdValue(a, qty)
}

// TokenAmountFromUsd returns the asset quantity whose current USD value
// equals usdValue.
func (e *Engine) TokenAmountFromUsd(asset string, usdValue *uint256.Int) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, err := e.asset(asset)
	if err != nil {
		return nil, err
	}
	return e.tokenAmountFromUsd(a, usdValue)
}

// HealthFactor returns user's current solvency ratio.
func (e *Engine) HealthFactor(user uuid.UUID) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.healthFactor(user)
}

// CollateralBalance returns user's deposited quantity of asset.
func (e *Engine) CollateralBalance(user uuid.UUID, asset string) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.CollateralBalance(user, asset)
}

// LiquidationBonus returns the bonus fraction numerator (out of
// LiquidationPrecision).
func (e *Engine) LiquidationBonus() uint64 {
	return e.params.LiquidationBonus
}

// Params returns the policy constants fixed at construction.
func (e *Engine) Params() Params {
	return Params{
		LiquidationThreshold: e.params.LiquidationThreshold,
		LiquidationPrecision: e.params.LiquidationPrecision,
		LiquidationBonus:     e.params.LiquidationBonus,
		MinHealthFactor:      new(uint256.Int).Set(e.params.MinHealthFactor),
	}
}

// CollateralAssets returns the approved asset symbols in registration order.
func (e *Engine) CollateralAssets() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Sequence returns the next event sequence number.
func (e *Engine) Sequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// Snapshot captures the full ledger plus the current sequence for
// persistence. Taken between operations, so it is always consistent.
func (e *Engine) Snapshot() (int64, []ledger.AccountRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence, e.ledger.Export()
}

// Restore loads a previously persisted ledger snapshot. Used only at
// startup, before the engine serves operations.
func (e *Engine) Restore(sequence int64, records []ledger.AccountRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.Import(records); err != nil {
		return err
	}
	e.sequence = sequence
	return nil
}
