package sale

import "math/big"

// Lock captures one purchase's pending, time-gated entitlement to the sale
// asset. A record is immutable once created except for the one-way Claimed
// transition; claimed history is retained for audit.
type Lock struct {
	Amount      *big.Int
	ReleaseTime int64
	Claimed     bool
}

// Clone returns a deep copy so callers can safely inspect records without
// aliasing ledger state.
func (l *Lock) Clone() *Lock {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Amount != nil {
		clone.Amount = new(big.Int).Set(l.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Release describes a single lock freed by a claim operation.
type Release struct {
	Index  int
	Amount *big.Int
}

// Receipt summarises a successful purchase.
type Receipt struct {
	PayAmount   *big.Int
	SaleAmount  *big.Int
	ReleaseTime int64
	LockIndex   int
}
