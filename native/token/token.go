package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

var (
	// ErrInvalidAmount indicates a nil or negative transfer amount.
	ErrInvalidAmount = errors.New("token: amount must be non-negative")
	// ErrInsufficientBalance indicates the sender cannot cover the transfer.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)

// Ledger is the minimal fungible-asset surface the sale engine depends on.
// Implementations may deduct fees or reject transfers for their own reasons;
// callers treat any returned error as an instruction to abort the enclosing
// operation.
type Ledger interface {
	Symbol() string
	BalanceOf(account [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// MemLedger is an in-memory Ledger used by tests and the development daemon.
// It is safe for concurrent use.
type MemLedger struct {
	mu       sync.RWMutex
	symbol   string
	balances map[[20]byte]*big.Int
}

// NewMemLedger constructs an empty ledger for the given asset symbol. The
// symbol is stored in canonical uppercase form.
func NewMemLedger(symbol string) *MemLedger {
	return &MemLedger{
		symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
		balances: make(map[[20]byte]*big.Int),
	}
}

// Symbol returns the canonical asset symbol.
func (l *MemLedger) Symbol() string {
	if l == nil {
		return ""
	}
	return l.symbol
}

// Mint credits the account with freshly issued units.
func (l *MemLedger) Mint(account [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger not initialised")
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.balances[account]
	if current == nil {
		current = big.NewInt(0)
	}
	l.balances[account] = new(big.Int).Add(current, amount)
	return nil
}

// BalanceOf returns a defensive copy of the account balance. Unknown accounts
// hold zero.
func (l *MemLedger) BalanceOf(account [20]byte) (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("token: ledger not initialised")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	current := l.balances[account]
	if current == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(current), nil
}

// Transfer moves units between accounts. A zero amount is a no-op so callers
// can skip empty payouts without special casing.
func (l *MemLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger not initialised")
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fromBal := l.balances[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal := l.balances[to]
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	l.balances[from] = new(big.Int).Sub(fromBal, amount)
	l.balances[to] = new(big.Int).Add(toBal, amount)
	return nil
}
