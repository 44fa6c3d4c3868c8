package engine

import (
	"fmt"

	"SynthLedger/internal/fixedpoint"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// totalCollateralValue sums the USD value of every registered asset the
// account holds. Zero-balance assets contribute zero; registration order
// keeps the summation deterministic.
func (e *Engine) totalCollateralValue(user uuid.UUID) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, symbol := range e.order {
		bal := e.ledger.CollateralBalance(user, symbol)
		if bal.IsZero() {
			continue
		}
		value, err := e.usdValue(e.assets[symbol], bal)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// healthFactor computes the threshold-weighted solvency ratio:
//
//	(collateralValue * threshold / thresholdPrecision) * 1e18 / debt
//
// Only a threshold-weighted fraction of collateral counts toward solvency,
// so the requirement is overweighted by 1/threshold (2x at the default
// 50%), building in the liquidation cushion. Zero debt returns the
// "infinite" sentinel: an account with no debt is always safe.
func (e *Engine) healthFactor(user uuid.UUID) (*uint256.Int, error) {
	debt := e.ledger.Debt(user)
	if debt.IsZero() {
		return new(uint256.Int).Set(fixedpoint.MaxUint256), nil
	}

	value, err := e.totalCollateralValue(user)
	if err != nil {
		return nil, err
	}

	adjusted, overflow := fixedpoint.MulDiv(value,
		uint256.NewInt(e.params.LiquidationThreshold),
		uint256.NewInt(e.params.LiquidationPrecision))
	if overflow {
		return nil, fmt.Errorf("%w: adjusted collateral value", ErrValueOverflow)
	}

	hf, overflow := fixedpoint.DivWad(adjusted, debt)
	if overflow {
		return nil, fmt.Errorf("%w: health factor", ErrValueOverflow)
	}
	return hf, nil
}

// assertHealthy fails with BreaksHealthFactorError if user's health factor
// is below the minimum. Every operation that could endanger solvency calls
// this after its tentative mutation; the caller rolls back on failure.
func (e *Engine) assertHealthy(user uuid.UUID) error {
	hf, err := e.healthFactor(user)
	if err != nil {
		return err
	}
	if hf.Lt(e.params.MinHealthFactor) {
		return &BreaksHealthFactorError{HealthFactor: hf}
	}
	return nil
}
