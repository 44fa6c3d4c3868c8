package engine

import (
	"context"
	"fmt"
	"time"

	"SynthLedger/internal/event"
	"SynthLedger/internal/ledger"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// DepositCollateral transfers qty of asset from the caller into engine
// custody and credits the ledger. Purely additive to collateral, so no
// health check is needed.
func (e *Engine) DepositCollateral(ctx context.Context, user uuid.UUID, asset string, qty *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	evt, err := e.depositLocked(ctx, uuid.New(), user, asset, qty)
	e.observe("deposit_collateral", start, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	e.log.Debug().Stringer("user", user).Str("asset", asset).
		Str("qty", qty.Dec()).Msg("collateral deposited")
	return nil
}

// MintSynthetic credits debt to the caller and mints the synthetic unit to
// them. The debt credit is reverted in full if the resulting position would
// be unsafe or the mint collaborator fails.
func (e *Engine) MintSynthetic(ctx context.Context, user uuid.UUID, amount *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	evt, err := e.mintLocked(ctx, uuid.New(), user, amount)
	e.observe("mint_synthetic", start, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	e.log.Debug().Stringer("user", user).Str("amount", amount.Dec()).Msg("synthetic minted")
	return nil
}

// DepositCollateralAndMint is the atomic composite: deposit then mint in a
// single failure domain. If the mint step fails, the deposit is undone,
// ledger credit and custody transfer both.
func (e *Engine) DepositCollateralAndMint(ctx context.Context, user uuid.UUID, asset string, qty, mintAmount *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.ledger.SnapshotAccount(user)
	opID := uuid.New()

	depositEvt, err := e.depositLocked(ctx, opID, user, asset, qty)
	if err != nil {
		e.observe("deposit_and_mint", start, err)
		return err
	}

	mintEvt, err := e.mintLocked(ctx, opID, user, mintAmount)
	if err != nil {
		e.ledger.RestoreAccount(snap)
		if refundErr := e.bank.TransferOut(ctx, user, asset, qty); refundErr != nil {
			// Custody now holds tokens the ledger no longer accounts for.
			panic(fmt.Sprintf("FATAL: deposit refund failed, custody inconsistent: %v", refundErr))
		}
		e.observe("deposit_and_mint", start, err)
		return err
	}

	e.observe("deposit_and_mint", start, nil)
	e.emit(depositEvt, mintEvt)
	return nil
}

// RedeemCollateral debits qty of asset and transfers it back to the caller.
// The debit never takes effect if the remaining position would be unsafe;
// no asset leaves custody in that case.
func (e *Engine) RedeemCollateral(ctx context.Context, user uuid.UUID, asset string, qty *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	evt, err := e.redeemLocked(ctx, uuid.New(), user, asset, qty)
	e.observe("redeem_collateral", start, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	e.log.Debug().Stringer("user", user).Str("asset", asset).
		Str("qty", qty.Dec()).Msg("collateral redeemed")
	return nil
}

// BurnSynthetic burns amount of the synthetic unit from the caller and
// debits their debt. Burning only improves the health factor, so no check
// is needed.
func (e *Engine) BurnSynthetic(ctx context.Context, user uuid.UUID, amount *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	evt, err := e.burnLocked(ctx, uuid.New(), user, amount)
	e.observe("burn_synthetic", start, err)
	if err != nil {
		return err
	}
	e.emit(evt)
	e.log.Debug().Stringer("user", user).Str("amount", amount.Dec()).Msg("synthetic burned")
	return nil
}

// RedeemCollateralForSynthetic is the atomic composite: burn debt then
// redeem collateral, single failure domain. The health check applies to the
// redeem step; on failure the burn is compensated by re-minting.
func (e *Engine) RedeemCollateralForSynthetic(ctx context.Context, user uuid.UUID, asset string, collateralQty, debtAmount *uint256.Int) error {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.ledger.SnapshotAccount(user)
	opID := uuid.New()

	burnEvt, err := e.burnLocked(ctx, opID, user, debtAmount)
	if err != nil {
		e.observe("redeem_for_synthetic", start, err)
		return err
	}

	redeemEvt, err := e.redeemLocked(ctx, opID, user, asset, collateralQty)
	if err != nil {
		e.ledger.RestoreAccount(snap)
		if mintErr := e.synthetic.Mint(ctx, user, debtAmount); mintErr != nil {
			// The burn already happened externally and cannot be compensated.
			panic(fmt.Sprintf("FATAL: burn compensation failed, supply inconsistent: %v", mintErr))
		}
		e.observe("redeem_for_synthetic", start, err)
		return err
	}

	e.observe("redeem_for_synthetic", start, nil)
	e.emit(burnEvt, redeemEvt)
	return nil
}

// --- internal steps ---
//
// Each *Locked helper applies one spec operation under the engine mutex,
// rolls back its own ledger mutations on failure, and returns the event to
// emit on commit. Ledger mutations complete before any external call, so a
// collaborator that re-enters can never observe a half-applied account.

func (e *Engine) depositLocked(ctx context.Context, opID, user uuid.UUID, asset string, qty *uint256.Int) (event.Event, error) {
	if qty == nil || qty.IsZero() {
		return nil, ledger.ErrZeroAmount
	}
	a, err := e.asset(asset)
	if err != nil {
		return nil, err
	}

	snap := e.ledger.SnapshotAccount(user)
	if err := e.ledger.CreditCollateral(user, asset, qty); err != nil {
		return nil, err
	}

	if err := e.bank.TransferIn(ctx, user, a.Symbol, qty); err != nil {
		e.ledger.RestoreAccount(snap)
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	return &event.CollateralDeposited{
		OpID:            opID,
		User:            user,
		AssetSymbol:     asset,
		Quantity:        qty.Dec(),
		ResultingAmount: e.ledger.CollateralBalance(user, asset).Dec(),
	}, nil
}

func (e *Engine) mintLocked(ctx context.Context, opID, user uuid.UUID, amount *uint256.Int) (event.Event, error) {
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}

	snap := e.ledger.SnapshotAccount(user)
	if err := e.ledger.CreditDebt(user, amount); err != nil {
		return nil, err
	}

	if err := e.assertHealthy(user); err != nil {
		e.ledger.RestoreAccount(snap)
		return nil, err
	}

	if err := e.synthetic.Mint(ctx, user, amount); err != nil {
		e.ledger.RestoreAccount(snap)
		return nil, fmt.Errorf("%w: %w", ErrMintFailed, err)
	}

	hf, err := e.healthFactor(user)
	if err != nil {
		hf = new(uint256.Int)
	}

	return &event.SyntheticMinted{
		OpID:          opID,
		User:          user,
		Amount:        amount.Dec(),
		ResultingDebt: e.ledger.Debt(user).Dec(),
		HealthFactor:  hf.Dec(),
	}, nil
}

func (e *Engine) redeemLocked(ctx context.Context, opID, user uuid.UUID, asset string, qty *uint256.Int) (event.Event, error) {
	if qty == nil || qty.IsZero() {
		return nil, ledger.ErrZeroAmount
	}
	a, err := e.asset(asset)
	if err != nil {
		return nil, err
	}

	snap := e.ledger.SnapshotAccount(user)
	if err := e.ledger.DebitCollateral(user, asset, qty); err != nil {
		return nil, err
	}

	if err := e.assertHealthy(user); err != nil {
		e.ledger.RestoreAccount(snap)
		return nil, err
	}

	if err := e.bank.TransferOut(ctx, user, a.Symbol, qty); err != nil {
		e.ledger.RestoreAccount(snap)
		return nil, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	return &event.CollateralRedeemed{
		OpID:            opID,
		User:            user,
		AssetSymbol:     asset,
		Quantity:        qty.Dec(),
		ResultingAmount: e.ledger.CollateralBalance(user, asset).Dec(),
	}, nil
}

func (e *Engine) burnLocked(ctx context.Context, opID, user uuid.UUID, amount *uint256.Int) (event.Event, error) {
	if amount == nil || amount.IsZero() {
		return nil, ledger.ErrZeroAmount
	}

	// Debt sufficiency is checked before the external burn so the ledger
	// debit below cannot fail after tokens are already destroyed.
	if e.ledger.Debt(user).Lt(amount) {
		return nil, ledger.ErrInsufficientDebt
	}

	if err := e.synthetic.BurnFrom(ctx, user, amount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBurnFailed, err)
	}

	if err := e.ledger.DebitDebt(user, amount); err != nil {
		panic(fmt.Sprintf("FATAL: debt debit failed after burn: %v", err))
	}

	return &event.SyntheticBurned{
		OpID:          opID,
		User:          user,
		Amount:        amount.Dec(),
		ResultingDebt: e.ledger.Debt(user).Dec(),
	}, nil
}
