package sale

import "math/big"

// LockLedger is the per-account, append-only collection of lock records plus
// the global aggregate of unclaimed locked quantity. Records are never removed
// or reordered, so an index stays valid for the lifetime of its record.
//
// The ledger performs no synchronisation of its own; the owning engine
// serialises access.
type LockLedger struct {
	locks       map[[20]byte][]*Lock
	totalLocked *big.Int
}

// NewLockLedger constructs an empty ledger.
func NewLockLedger() *LockLedger {
	return &LockLedger{
		locks:       make(map[[20]byte][]*Lock),
		totalLocked: big.NewInt(0),
	}
}

// Append adds an unclaimed record for the account and returns its index. The
// global aggregate grows by the locked amount in the same step.
func (l *LockLedger) Append(account [20]byte, amount *big.Int, releaseTime int64) int {
	locked := big.NewInt(0)
	if amount != nil && amount.Sign() > 0 {
		locked = new(big.Int).Set(amount)
	}
	record := &Lock{Amount: locked, ReleaseTime: releaseTime}
	l.locks[account] = append(l.locks[account], record)
	l.totalLocked = new(big.Int).Add(l.totalLocked, locked)
	return len(l.locks[account]) - 1
}

// Locks returns deep copies of the account's full ordered record sequence. An
// unknown account yields an empty slice, not an error.
func (l *LockLedger) Locks(account [20]byte) []*Lock {
	records := l.locks[account]
	out := make([]*Lock, len(records))
	for i, record := range records {
		out[i] = record.Clone()
	}
	return out
}

// Count reports how many records the account holds.
func (l *LockLedger) Count(account [20]byte) int {
	return len(l.locks[account])
}

// MarkClaimed flips the record's claimed flag and returns the freed amount,
// shrinking the global aggregate in the same step. The claimed check is the
// sole double-spend guard and must run before any transfer side effect.
func (l *LockLedger) MarkClaimed(account [20]byte, index int) (*big.Int, error) {
	records := l.locks[account]
	if index < 0 || index >= len(records) {
		return nil, ErrInvalidIndex
	}
	record := records[index]
	if record.Claimed {
		return nil, ErrAlreadyClaimed
	}
	record.Claimed = true
	freed := new(big.Int).Set(record.Amount)
	l.totalLocked = new(big.Int).Sub(l.totalLocked, freed)
	return freed, nil
}

// SweepUnlocked marks every matured, unclaimed record for the account and
// returns the individual releases along with their sum. Records that are
// still locked or already claimed are skipped as normal filtering, not an
// error; a zero total is the caller's call to judge.
func (l *LockLedger) SweepUnlocked(account [20]byte, now int64) ([]Release, *big.Int) {
	total := big.NewInt(0)
	var releases []Release
	for i, record := range l.locks[account] {
		if record.Claimed || record.ReleaseTime > now {
			continue
		}
		record.Claimed = true
		amount := new(big.Int).Set(record.Amount)
		releases = append(releases, Release{Index: i, Amount: amount})
		total = new(big.Int).Add(total, amount)
	}
	l.totalLocked = new(big.Int).Sub(l.totalLocked, total)
	return releases, total
}

// TotalLocked returns a copy of the global unclaimed aggregate.
func (l *LockLedger) TotalLocked() *big.Int {
	return new(big.Int).Set(l.totalLocked)
}

// restore undoes claim marks after a failed outbound transfer so an aborted
// operation leaves no observable state change. Only the engine calls this,
// while it still holds the execution guard.
func (l *LockLedger) restore(account [20]byte, releases []Release) {
	records := l.locks[account]
	for _, release := range releases {
		if release.Index < 0 || release.Index >= len(records) {
			continue
		}
		records[release.Index].Claimed = false
		l.totalLocked = new(big.Int).Add(l.totalLocked, release.Amount)
	}
}
