package ledger

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Account is the per-user bookkeeping record: deposited collateral per asset
// and the outstanding minted debt. All quantities are non-negative wads.
// Accounts are created implicitly on first use and never destroyed; an
// account with zero collateral and zero debt is simply an empty record.
type Account struct {
	UserID     uuid.UUID
	collateral map[string]*uint256.Int
	debt       *uint256.Int
	Version    int64
}

func newAccount(userID uuid.UUID) *Account {
	return &Account{
		UserID:     userID,
		collateral: make(map[string]*uint256.Int),
		debt:       new(uint256.Int),
	}
}

// CollateralBalance returns a copy of the deposited quantity for asset
// (zero if the account never held it).
func (a *Account) CollateralBalance(asset string) *uint256.Int {
	if bal, ok := a.collateral[asset]; ok {
		return new(uint256.Int).Set(bal)
	}
	return new(uint256.Int)
}

// Debt returns a copy of the outstanding minted debt.
func (a *Account) Debt() *uint256.Int {
	return new(uint256.Int).Set(a.debt)
}

// Assets returns the asset symbols this account has ever held.
func (a *Account) Assets() []string {
	assets := make([]string, 0, len(a.collateral))
	for asset := range a.collateral {
		assets = append(assets, asset)
	}
	return assets
}

// AccountSnapshot is a deep copy of an account's mutable state, used to roll
// back a composite operation that fails partway through.
type AccountSnapshot struct {
	userID     uuid.UUID
	existed    bool
	collateral map[string]*uint256.Int
	debt       *uint256.Int
	version    int64
}

func (a *Account) snapshot() *AccountSnapshot {
	collateral := make(map[string]*uint256.Int, len(a.collateral))
	for asset, bal := range a.collateral {
		collateral[asset] = new(uint256.Int).Set(bal)
	}
	return &AccountSnapshot{
		userID:     a.UserID,
		existed:    true,
		collateral: collateral,
		debt:       new(uint256.Int).Set(a.debt),
		version:    a.Version,
	}
}
