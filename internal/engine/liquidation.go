package engine

import (
	"context"
	"fmt"
	"time"

	"SynthLedger/internal/event"
	"SynthLedger/internal/fixedpoint"
	"SynthLedger/internal/ledger"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Liquidate repays debtToCover of target's debt on the liquidator's behalf
// and transfers the bonus-adjusted collateral payout to the liquidator.
//
// The target must already be unsafe, and the liquidation must not leave it
// worse off. The payout comes from a single asset; if the bonus-adjusted
// payout exceeds the target's balance of that asset there is no partial
// fallback; the whole liquidation fails. The liquidator's own health
// factor is not checked here: a liquidator is expected to be, and remain,
// independently solvent.
func (e *Engine) Liquidate(ctx context.Context, liquidator, target uuid.UUID, asset string, debtToCover *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.liquidateLocked(ctx, liquidator, target, asset, debtToCover)
	e.observe("liquidate", start, err)
	return err
}

func (e *Engine) liquidateLocked(ctx context.Context, liquidator, target uuid.UUID, asset string, debtToCover *uint256.Int) error {
	if debtToCover == nil || debtToCover.IsZero() {
		return ledger.ErrZeroAmount
	}
	a, err := e.asset(asset)
	if err != nil {
		return err
	}

	startingHF, err := e.healthFactor(target)
	if err != nil {
		return err
	}
	if !startingHF.Lt(e.params.MinHealthFactor) {
		return fmt.Errorf("%w: %s", ErrHealthFactorOk, startingHF.Dec())
	}

	if e.ledger.Debt(target).Lt(debtToCover) {
		return ledger.ErrInsufficientDebt
	}

	// Collateral quantity whose current USD value equals the repaid debt,
	// plus the liquidator's bonus.
	payout, err := e.tokenAmountFromUsd(a, debtToCover)
	if err != nil {
		return err
	}
	bonus, overflow := fixedpoint.MulDiv(payout,
		uint256.NewInt(e.params.LiquidationBonus),
		uint256.NewInt(e.params.LiquidationPrecision))
	if overflow {
		return fmt.Errorf("%w: liquidation bonus", ErrValueOverflow)
	}
	totalPayout := new(uint256.Int).Add(payout, bonus)

	// Under-collateralized beyond the bonus: no partial liquidation here.
	if e.ledger.CollateralBalance(target, asset).Lt(totalPayout) {
		return fmt.Errorf("%w: payout %s exceeds target balance of %s",
			ledger.ErrInsufficientCollateral, totalPayout.Dec(), asset)
	}

	snap := e.ledger.SnapshotAccount(target)
	if err := e.ledger.DebitCollateral(target, asset, totalPayout); err != nil {
		return err
	}
	if err := e.ledger.DebitDebt(target, debtToCover); err != nil {
		e.ledger.RestoreAccount(snap)
		return err
	}

	// The post-state depends only on the ledger and prices, so it is
	// verified before any external call commits value movement.
	endingHF, err := e.healthFactor(target)
	if err != nil {
		e.ledger.RestoreAccount(snap)
		return err
	}
	if endingHF.Lt(startingHF) {
		e.ledger.RestoreAccount(snap)
		return fmt.Errorf("%w: %s -> %s",
			ErrHealthFactorNotImproved, startingHF.Dec(), endingHF.Dec())
	}

	if err := e.synthetic.BurnFrom(ctx, liquidator, debtToCover); err != nil {
		e.ledger.RestoreAccount(snap)
		return fmt.Errorf("%w: %w", ErrBurnFailed, err)
	}

	if err := e.bank.TransferOut(ctx, liquidator, a.Symbol, totalPayout); err != nil {
		e.ledger.RestoreAccount(snap)
		if mintErr := e.synthetic.Mint(ctx, liquidator, debtToCover); mintErr != nil {
			panic(fmt.Sprintf("FATAL: burn compensation failed, supply inconsistent: %v", mintErr))
		}
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	e.emit(&event.AccountLiquidated{
		OpID:             uuid.New(),
		Liquidator:       liquidator,
		Target:           target,
		AssetSymbol:      asset,
		DebtCovered:      debtToCover.Dec(),
		CollateralPayout: payout.Dec(),
		BonusCollateral:  bonus.Dec(),
		HealthBefore:     startingHF.Dec(),
		HealthAfter:      endingHF.Dec(),
	})

	if e.metrics != nil {
		e.metrics.LiquidationsExecuted.WithLabelValues(asset).Inc()
	}
	e.log.Info().
		Stringer("liquidator", liquidator).
		Stringer("target", target).
		Str("asset", asset).
		Str("debt_covered", debtToCover.Dec()).
		Str("total_payout", totalPayout.Dec()).
		Msg("account liquidated")

	return nil
}
