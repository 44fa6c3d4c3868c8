package token

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var ErrInsufficientFunds = errors.New("insufficient token balance")

// CollateralBank is the token-transfer collaborator. Transfers are atomic:
// they fully succeed or fully fail, and a non-nil error means no balance
// moved. The engine is the implicit counterparty: TransferIn moves tokens
// from the owner into engine custody, TransferOut releases custody to the
// recipient.
type CollateralBank interface {
	TransferIn(ctx context.Context, owner uuid.UUID, asset string, qty *uint256.Int) error
	TransferOut(ctx context.Context, recipient uuid.UUID, asset string, qty *uint256.Int) error
}

// SyntheticToken is the synthetic-unit collaborator. Burn authorization is
// assumed already granted by the holder before the engine burns on their
// behalf.
type SyntheticToken interface {
	Mint(ctx context.Context, to uuid.UUID, amount *uint256.Int) error
	BurnFrom(ctx context.Context, holder uuid.UUID, amount *uint256.Int) error
}
