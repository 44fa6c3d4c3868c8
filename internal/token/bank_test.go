package token_test

import (
	"context"
	"errors"
	"testing"

	"SynthLedger/internal/token"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

func qty(units uint64) *uint256.Int {
	return uint256.NewInt(units)
}

func TestBank_TransferInMovesFundsToCustody(t *testing.T) {
	b := token.NewBank()
	user := uuid.New()
	b.Fund(user, "WETH", qty(100))

	if err := b.TransferIn(context.Background(), user, "WETH", qty(40)); err != nil {
		t.Fatalf("TransferIn failed: %v", err)
	}

	if bal := b.Balance(user, "WETH"); bal.Uint64() != 60 {
		t.Errorf("expected free balance 60, got %s", bal.Dec())
	}
	if custody := b.CustodyBalance("WETH"); custody.Uint64() != 40 {
		t.Errorf("expected custody 40, got %s", custody.Dec())
	}
}

func TestBank_TransferInRejectsInsufficientFunds(t *testing.T) {
	b := token.NewBank()
	user := uuid.New()
	b.Fund(user, "WETH", qty(10))

	err := b.TransferIn(context.Background(), user, "WETH", qty(11))
	if !errors.Is(err, token.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if bal := b.Balance(user, "WETH"); bal.Uint64() != 10 {
		t.Errorf("expected balance unchanged at 10, got %s", bal.Dec())
	}
	if custody := b.CustodyBalance("WETH"); !custody.IsZero() {
		t.Errorf("expected empty custody, got %s", custody.Dec())
	}
}

func TestBank_TransferOutReleasesCustody(t *testing.T) {
	b := token.NewBank()
	depositor := uuid.New()
	recipient := uuid.New()
	b.Fund(depositor, "WETH", qty(50))

	if err := b.TransferIn(context.Background(), depositor, "WETH", qty(50)); err != nil {
		t.Fatalf("TransferIn failed: %v", err)
	}
	if err := b.TransferOut(context.Background(), recipient, "WETH", qty(20)); err != nil {
		t.Fatalf("TransferOut failed: %v", err)
	}

	if bal := b.Balance(recipient, "WETH"); bal.Uint64() != 20 {
		t.Errorf("expected recipient balance 20, got %s", bal.Dec())
	}
	if custody := b.CustodyBalance("WETH"); custody.Uint64() != 30 {
		t.Errorf("expected custody 30, got %s", custody.Dec())
	}
}

func TestBank_TransferOutRejectsOverdraw(t *testing.T) {
	b := token.NewBank()
	err := b.TransferOut(context.Background(), uuid.New(), "WETH", qty(1))
	if !errors.Is(err, token.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestBank_AssetsAreIsolated(t *testing.T) {
	b := token.NewBank()
	user := uuid.New()
	b.Fund(user, "WETH", qty(10))

	err := b.TransferIn(context.Background(), user, "WBTC", qty(1))
	if !errors.Is(err, token.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds for unfunded asset, got %v", err)
	}
}

func TestSyntheticSupply_MintAndBurn(t *testing.T) {
	s := token.NewSyntheticSupply()
	holder := uuid.New()

	if err := s.Mint(context.Background(), holder, qty(100)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := s.BurnFrom(context.Background(), holder, qty(30)); err != nil {
		t.Fatalf("BurnFrom failed: %v", err)
	}

	if bal := s.Balance(holder); bal.Uint64() != 70 {
		t.Errorf("expected balance 70, got %s", bal.Dec())
	}
	if supply := s.TotalSupply(); supply.Uint64() != 70 {
		t.Errorf("expected supply 70, got %s", supply.Dec())
	}
}

func TestSyntheticSupply_BurnRejectsOverdraw(t *testing.T) {
	s := token.NewSyntheticSupply()
	holder := uuid.New()

	if err := s.Mint(context.Background(), holder, qty(10)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	err := s.BurnFrom(context.Background(), holder, qty(11))
	if !errors.Is(err, token.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if supply := s.TotalSupply(); supply.Uint64() != 10 {
		t.Errorf("expected supply unchanged at 10, got %s", supply.Dec())
	}
}

func TestSyntheticSupply_TracksPerHolder(t *testing.T) {
	s := token.NewSyntheticSupply()
	a := uuid.New()
	b := uuid.New()

	if err := s.Mint(context.Background(), a, qty(5)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := s.Mint(context.Background(), b, qty(7)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if bal := s.Balance(a); bal.Uint64() != 5 {
		t.Errorf("expected holder a balance 5, got %s", bal.Dec())
	}
	if bal := s.Balance(b); bal.Uint64() != 7 {
		t.Errorf("expected holder b balance 7, got %s", bal.Dec())
	}
	if supply := s.TotalSupply(); supply.Uint64() != 12 {
		t.Errorf("expected supply 12, got %s", supply.Dec())
	}
}
