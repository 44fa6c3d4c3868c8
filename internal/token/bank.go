package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Bank is the in-memory custody ledger backing CollateralBank. It tracks
// each user's free token balances plus the engine's custody pool per asset.
// Funding (the on-ramp boundary) credits a user's free balance.
type Bank struct {
	mu       sync.Mutex
	balances map[uuid.UUID]map[string]*uint256.Int
	custody  map[string]*uint256.Int
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[uuid.UUID]map[string]*uint256.Int),
		custody:  make(map[string]*uint256.Int),
	}
}

func (b *Bank) userBalance(user uuid.UUID, asset string) *uint256.Int {
	byAsset, ok := b.balances[user]
	if !ok {
		byAsset = make(map[string]*uint256.Int)
		b.balances[user] = byAsset
	}
	bal, ok := byAsset[asset]
	if !ok {
		bal = new(uint256.Int)
		byAsset[asset] = bal
	}
	return bal
}

func (b *Bank) custodyBalance(asset string) *uint256.Int {
	bal, ok := b.custody[asset]
	if !ok {
		bal = new(uint256.Int)
		b.custody[asset] = bal
	}
	return bal
}

// Fund credits qty to user's free balance. This is the deposit on-ramp;
// in production it is driven by the admin funding endpoint.
func (b *Bank) Fund(user uuid.UUID, asset string, qty *uint256.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.userBalance(user, asset)
	bal.Add(bal, qty)
}

// TransferIn moves qty from owner's free balance into engine custody.
func (b *Bank) TransferIn(ctx context.Context, owner uuid.UUID, asset string, qty *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.userBalance(owner, asset)
	if bal.Lt(qty) {
		return fmt.Errorf("%w: %s owner %s", ErrInsufficientFunds, asset, owner)
	}
	bal.Sub(bal, qty)
	custody := b.custodyBalance(asset)
	custody.Add(custody, qty)
	return nil
}

// TransferOut releases qty from engine custody to recipient's free balance.
func (b *Bank) TransferOut(ctx context.Context, recipient uuid.UUID, asset string, qty *uint256.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	custody := b.custodyBalance(asset)
	if custody.Lt(qty) {
		return fmt.Errorf("%w: custody %s", ErrInsufficientFunds, asset)
	}
	custody.Sub(custody, qty)
	bal := b.userBalance(recipient, asset)
	bal.Add(bal, qty)
	return nil
}

// Balance returns a copy of user's free balance for asset.
func (b *Bank) Balance(user uuid.UUID, asset string) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(uint256.Int).Set(b.userBalance(user, asset))
}

// CustodyBalance returns a copy of the engine custody pool for asset.
func (b *Bank) CustodyBalance(asset string) *uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(uint256.Int).Set(b.custodyBalance(asset))
}

// SyntheticSupply is the in-memory SyntheticToken implementation: per-holder
// balances plus total supply.
type SyntheticSupply struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*uint256.Int
	supply   *uint256.Int
}

func NewSyntheticSupply() *SyntheticSupply {
	return &SyntheticSupply{
		balances: make(map[uuid.UUID]*uint256.Int),
		supply:   new(uint256.Int),
	}
}

func (s *SyntheticSupply) holderBalance(holder uuid.UUID) *uint256.Int {
	bal, ok := s.balances[holder]
	if !ok {
		bal = new(uint256.Int)
		s.balances[holder] = bal
	}
	return bal
}

func (s *SyntheticSupply) Mint(ctx context.Context, to uuid.UUID, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.holderBalance(to)
	bal.Add(bal, amount)
	s.supply.Add(s.supply, amount)
	return nil
}

func (s *SyntheticSupply) BurnFrom(ctx context.Context, holder uuid.UUID, amount *uint256.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := s.holderBalance(holder)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: synthetic holder %s", ErrInsufficientFunds, holder)
	}
	bal.Sub(bal, amount)
	s.supply.Sub(s.supply, amount)
	return nil
}

// Balance returns a copy of holder's synthetic-unit balance.
func (s *SyntheticSupply) Balance(holder uuid.UUID) *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.holderBalance(holder))
}

// TotalSupply returns a copy of the outstanding supply.
func (s *SyntheticSupply) TotalSupply() *uint256.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(uint256.Int).Set(s.supply)
}
