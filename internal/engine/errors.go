package engine

import (
	"errors"
	"fmt"

	"SynthLedger/internal/ledger"

	"github.com/holiman/uint256"
)

var (
	// ErrMismatchedFeedConfig rejects construction when the collateral-asset
	// list and the price-feed list differ in length.
	ErrMismatchedFeedConfig = errors.New("collateral assets and price feeds must be the same length")

	// ErrNotAllowedToken rejects operations on assets outside the approved set.
	ErrNotAllowedToken = errors.New("collateral asset not registered")

	// ErrTransferFailed wraps a failure reported by the token-transfer collaborator.
	ErrTransferFailed = errors.New("collateral transfer failed")

	// ErrMintFailed wraps a failure reported by the synthetic-unit mint.
	ErrMintFailed = errors.New("synthetic mint failed")

	// ErrBurnFailed wraps a failure reported by the synthetic-unit burn.
	ErrBurnFailed = errors.New("synthetic burn failed")

	// ErrHealthFactorOk rejects liquidating an account that is still solvent.
	ErrHealthFactorOk = errors.New("target health factor is not below minimum")

	// ErrHealthFactorNotImproved rejects a liquidation that would leave the
	// target worse off than before.
	ErrHealthFactorNotImproved = errors.New("liquidation did not improve target health factor")

	// ErrValueOverflow guards fixed-point intermediates that exceed 256 bits.
	ErrValueOverflow = errors.New("fixed-point value overflow")
)

// BreaksHealthFactorError reports the unsafe health factor an operation
// would have produced. The operation's effects are fully rolled back before
// this is returned.
type BreaksHealthFactorError struct {
	HealthFactor *uint256.Int
}

func (e *BreaksHealthFactorError) Error() string {
	return fmt.Sprintf("operation breaks health factor: %s below minimum", e.HealthFactor.Dec())
}

// rejectReason buckets an operation error into a stable metrics label.
func rejectReason(err error) string {
	var hfErr *BreaksHealthFactorError
	switch {
	case errors.Is(err, ledger.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ledger.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ledger.ErrInsufficientDebt):
		return "insufficient_debt"
	case errors.Is(err, ErrNotAllowedToken):
		return "not_allowed_token"
	case errors.Is(err, ErrTransferFailed), errors.Is(err, ErrMintFailed), errors.Is(err, ErrBurnFailed):
		return "collaborator_failure"
	case errors.Is(err, ErrHealthFactorOk):
		return "health_factor_ok"
	case errors.Is(err, ErrHealthFactorNotImproved):
		return "health_factor_not_improved"
	case errors.As(err, &hfErr):
		return "breaks_health_factor"
	default:
		return "other"
	}
}
