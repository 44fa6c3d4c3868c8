package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

var (
	ErrZeroAmount             = errors.New("amount must be positive")
	ErrInsufficientCollateral = errors.New("insufficient collateral balance")
	ErrInsufficientDebt       = errors.New("insufficient outstanding debt")
)

// Ledger owns every account record. It is the only mutable shared state in
// the engine, and the four primitives below are its only mutation points.
// All higher-level operations compose from them, so invariant enforcement
// stays centralized.
//
// The ledger itself is not goroutine-safe; the engine serializes access.
type Ledger struct {
	accounts map[uuid.UUID]*Account
}

func NewLedger() *Ledger {
	return &Ledger{
		accounts: make(map[uuid.UUID]*Account),
	}
}

// account returns the record for user, creating an empty one on first use.
func (l *Ledger) account(user uuid.UUID) *Account {
	acct, ok := l.accounts[user]
	if !ok {
		acct = newAccount(user)
		l.accounts[user] = acct
	}
	return acct
}

// Account returns the record for user, or nil if the user has never been seen.
func (l *Ledger) Account(user uuid.UUID) *Account {
	return l.accounts[user]
}

// CreditCollateral increases user's balance for asset by qty.
func (l *Ledger) CreditCollateral(user uuid.UUID, asset string, qty *uint256.Int) error {
	if qty == nil || qty.IsZero() {
		return ErrZeroAmount
	}
	acct := l.account(user)
	bal, ok := acct.collateral[asset]
	if !ok {
		bal = new(uint256.Int)
		acct.collateral[asset] = bal
	}
	bal.Add(bal, qty)
	acct.Version++
	return nil
}

// DebitCollateral decreases user's balance for asset by qty. The balance is
// checked before mutation; a debit can never produce a negative balance.
func (l *Ledger) DebitCollateral(user uuid.UUID, asset string, qty *uint256.Int) error {
	if qty == nil || qty.IsZero() {
		return ErrZeroAmount
	}
	acct := l.account(user)
	bal, ok := acct.collateral[asset]
	if !ok || bal.Lt(qty) {
		return fmt.Errorf("%w: asset %s", ErrInsufficientCollateral, asset)
	}
	bal.Sub(bal, qty)
	acct.Version++
	return nil
}

// CreditDebt increases user's outstanding debt by amount.
func (l *Ledger) CreditDebt(user uuid.UUID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	acct := l.account(user)
	acct.debt.Add(acct.debt, amount)
	acct.Version++
	return nil
}

// DebitDebt decreases user's outstanding debt by amount, checked before mutation.
func (l *Ledger) DebitDebt(user uuid.UUID, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	acct := l.account(user)
	if acct.debt.Lt(amount) {
		return ErrInsufficientDebt
	}
	acct.debt.Sub(acct.debt, amount)
	acct.Version++
	return nil
}

// CollateralBalance returns a copy of user's deposited quantity for asset.
func (l *Ledger) CollateralBalance(user uuid.UUID, asset string) *uint256.Int {
	if acct, ok := l.accounts[user]; ok {
		return acct.CollateralBalance(asset)
	}
	return new(uint256.Int)
}

// Debt returns a copy of user's outstanding debt.
func (l *Ledger) Debt(user uuid.UUID) *uint256.Int {
	if acct, ok := l.accounts[user]; ok {
		return acct.Debt()
	}
	return new(uint256.Int)
}

// SnapshotAccount captures user's current state for rollback. Taking a
// snapshot of a never-seen user records that fact so a restore removes the
// implicitly created record again.
func (l *Ledger) SnapshotAccount(user uuid.UUID) *AccountSnapshot {
	acct, ok := l.accounts[user]
	if !ok {
		return &AccountSnapshot{userID: user, existed: false}
	}
	return acct.snapshot()
}

// RestoreAccount rewinds user's record to a previously taken snapshot.
func (l *Ledger) RestoreAccount(snap *AccountSnapshot) {
	if snap == nil {
		return
	}
	if !snap.existed {
		delete(l.accounts, snap.userID)
		return
	}
	acct := l.account(snap.userID)
	acct.collateral = make(map[string]*uint256.Int, len(snap.collateral))
	for asset, bal := range snap.collateral {
		acct.collateral[asset] = new(uint256.Int).Set(bal)
	}
	acct.debt = new(uint256.Int).Set(snap.debt)
	acct.Version = snap.version
}

// AccountRecord is the serializable form of an account, used for snapshots
// and recovery. Amounts are decimal strings to survive JSON round-trips.
type AccountRecord struct {
	UserID     string            `json:"user_id"`
	Debt       string            `json:"debt"`
	Collateral map[string]string `json:"collateral"`
	Version    int64             `json:"version"`
}

// Export returns all accounts sorted by user ID for deterministic snapshots.
func (l *Ledger) Export() []AccountRecord {
	records := make([]AccountRecord, 0, len(l.accounts))
	for _, acct := range l.accounts {
		rec := AccountRecord{
			UserID:     acct.UserID.String(),
			Debt:       acct.debt.Dec(),
			Collateral: make(map[string]string, len(acct.collateral)),
			Version:    acct.Version,
		}
		for asset, bal := range acct.collateral {
			rec.Collateral[asset] = bal.Dec()
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UserID < records[j].UserID
	})
	return records
}

// ExportAccount returns the serializable form of a single account, or nil
// if the user has never been seen.
func (l *Ledger) ExportAccount(user uuid.UUID) *AccountRecord {
	acct, ok := l.accounts[user]
	if !ok {
		return nil
	}
	rec := &AccountRecord{
		UserID:     acct.UserID.String(),
		Debt:       acct.debt.Dec(),
		Collateral: make(map[string]string, len(acct.collateral)),
		Version:    acct.Version,
	}
	for asset, bal := range acct.collateral {
		rec.Collateral[asset] = bal.Dec()
	}
	return rec
}

// Import replaces the ledger contents with the given records.
func (l *Ledger) Import(records []AccountRecord) error {
	accounts := make(map[uuid.UUID]*Account, len(records))
	for _, rec := range records {
		userID, err := uuid.Parse(rec.UserID)
		if err != nil {
			return fmt.Errorf("parse user_id %q: %w", rec.UserID, err)
		}
		acct := newAccount(userID)
		acct.Version = rec.Version
		if acct.debt, err = uint256.FromDecimal(rec.Debt); err != nil {
			return fmt.Errorf("parse debt for %s: %w", rec.UserID, err)
		}
		for asset, bal := range rec.Collateral {
			parsed, err := uint256.FromDecimal(bal)
			if err != nil {
				return fmt.Errorf("parse %s balance for %s: %w", asset, rec.UserID, err)
			}
			acct.collateral[asset] = parsed
		}
		accounts[userID] = acct
	}
	l.accounts = accounts
	return nil
}

// Len returns the number of account records.
func (l *Ledger) Len() int {
	return len(l.accounts)
}
