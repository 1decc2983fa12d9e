package token

import (
	"errors"
	"math/big"
	"testing"
)

func account(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestMemLedgerMintAndBalance(t *testing.T) {
	ledger := NewMemLedger(" pay ")
	if ledger.Symbol() != "PAY" {
		t.Fatalf("expected canonical symbol PAY, got %q", ledger.Symbol())
	}

	holder := account(0x01)
	if err := ledger.Mint(holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if err := ledger.Mint(holder, big.NewInt(50)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	balance, err := ledger.BalanceOf(holder)
	if err != nil {
		t.Fatalf("balance lookup failed: %v", err)
	}
	if balance.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected balance 150, got %s", balance)
	}

	if err := ledger.Mint(holder, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestMemLedgerBalanceOfReturnsCopy(t *testing.T) {
	ledger := NewMemLedger("SALE")
	holder := account(0x02)
	if err := ledger.Mint(holder, big.NewInt(10)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	balance, _ := ledger.BalanceOf(holder)
	balance.SetInt64(9999)

	fresh, _ := ledger.BalanceOf(holder)
	if fresh.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("balance mutated through alias: %s", fresh)
	}
}

func TestMemLedgerUnknownAccountHoldsZero(t *testing.T) {
	ledger := NewMemLedger("PAY")
	balance, err := ledger.BalanceOf(account(0xFF))
	if err != nil {
		t.Fatalf("balance lookup failed: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}

func TestMemLedgerTransfer(t *testing.T) {
	ledger := NewMemLedger("PAY")
	sender := account(0x03)
	receiver := account(0x04)
	if err := ledger.Mint(sender, big.NewInt(100)); err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := ledger.Transfer(sender, receiver, big.NewInt(60)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	senderBal, _ := ledger.BalanceOf(sender)
	receiverBal, _ := ledger.BalanceOf(receiver)
	if senderBal.Cmp(big.NewInt(40)) != 0 || receiverBal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("unexpected balances after transfer: %s / %s", senderBal, receiverBal)
	}

	if err := ledger.Transfer(sender, receiver, big.NewInt(41)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Transfer(sender, receiver, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ledger.Transfer(account(0x05), receiver, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for unfunded sender, got %v", err)
	}
}

func TestMemLedgerZeroTransferIsNoop(t *testing.T) {
	ledger := NewMemLedger("PAY")
	sender := account(0x06)
	receiver := account(0x07)

	// A zero transfer succeeds even when the sender holds nothing.
	if err := ledger.Transfer(sender, receiver, big.NewInt(0)); err != nil {
		t.Fatalf("zero transfer should be a no-op: %v", err)
	}
	receiverBal, _ := ledger.BalanceOf(receiver)
	if receiverBal.Sign() != 0 {
		t.Fatalf("zero transfer credited receiver: %s", receiverBal)
	}
}
