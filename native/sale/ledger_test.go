package sale

import (
	"bytes"
	"errors"
	"math/big"
	"testing"
)

func testAccount(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func requireTotal(t *testing.T, ledger *LockLedger, want int64) {
	t.Helper()
	if total := ledger.TotalLocked(); total.Cmp(big.NewInt(want)) != 0 {
		t.Fatalf("expected totalLocked %d, got %s", want, total)
	}
}

// The aggregate must always equal the sum of unclaimed record amounts.
func requireAggregateConsistent(t *testing.T, ledger *LockLedger, accounts ...[20]byte) {
	t.Helper()
	sum := big.NewInt(0)
	for _, account := range accounts {
		for _, record := range ledger.Locks(account) {
			if !record.Claimed {
				sum = new(big.Int).Add(sum, record.Amount)
			}
		}
	}
	if sum.Cmp(ledger.TotalLocked()) != 0 {
		t.Fatalf("aggregate drifted: records sum %s, totalLocked %s", sum, ledger.TotalLocked())
	}
}

func TestLedgerAppendAssignsStableIndices(t *testing.T) {
	ledger := NewLockLedger()
	account := testAccount(0x01)

	for i := 0; i < 3; i++ {
		index := ledger.Append(account, big.NewInt(int64(100+i)), int64(1000+i))
		if index != i {
			t.Fatalf("expected index %d, got %d", i, index)
		}
	}
	requireTotal(t, ledger, 303)

	records := ledger.Locks(account)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, record := range records {
		if record.Claimed {
			t.Fatalf("record %d created claimed", i)
		}
		if record.Amount.Cmp(big.NewInt(int64(100+i))) != 0 {
			t.Fatalf("record %d amount %s", i, record.Amount)
		}
	}
}

func TestLedgerLocksUnknownAccountIsEmpty(t *testing.T) {
	ledger := NewLockLedger()
	if records := ledger.Locks(testAccount(0xEE)); len(records) != 0 {
		t.Fatalf("expected empty sequence, got %d records", len(records))
	}
}

func TestLedgerLocksReturnsCopies(t *testing.T) {
	ledger := NewLockLedger()
	account := testAccount(0x02)
	ledger.Append(account, big.NewInt(50), 10)

	records := ledger.Locks(account)
	records[0].Claimed = true
	records[0].Amount.SetInt64(999)

	fresh := ledger.Locks(account)
	if fresh[0].Claimed {
		t.Fatal("mutating a returned record leaked into ledger state")
	}
	if fresh[0].Amount.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("amount mutated through alias: %s", fresh[0].Amount)
	}
}

func TestLedgerMarkClaimed(t *testing.T) {
	ledger := NewLockLedger()
	account := testAccount(0x03)
	ledger.Append(account, big.NewInt(70), 10)

	if _, err := ledger.MarkClaimed(account, 1); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if _, err := ledger.MarkClaimed(account, -1); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex for negative index, got %v", err)
	}

	freed, err := ledger.MarkClaimed(account, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if freed.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("expected freed 70, got %s", freed)
	}
	requireTotal(t, ledger, 0)

	// Idempotence of failure: repeated double-claims always fail the same way.
	for i := 0; i < 3; i++ {
		if _, err := ledger.MarkClaimed(account, 0); !errors.Is(err, ErrAlreadyClaimed) {
			t.Fatalf("attempt %d: expected ErrAlreadyClaimed, got %v", i, err)
		}
	}
	requireAggregateConsistent(t, ledger, account)
}

func TestLedgerSweepUnlocked(t *testing.T) {
	ledger := NewLockLedger()
	account := testAccount(0x04)
	ledger.Append(account, big.NewInt(10), 100)
	ledger.Append(account, big.NewInt(20), 200)
	ledger.Append(account, big.NewInt(30), 300)

	releases, total := ledger.SweepUnlocked(account, 50)
	if len(releases) != 0 || total.Sign() != 0 {
		t.Fatalf("expected empty sweep, got %d releases total %s", len(releases), total)
	}

	// The release-time boundary is inclusive: a record matures at exactly T.
	releases, total = ledger.SweepUnlocked(account, 200)
	if len(releases) != 2 {
		t.Fatalf("expected 2 releases, got %d", len(releases))
	}
	if releases[0].Index != 0 || releases[1].Index != 1 {
		t.Fatalf("unexpected release indices %d, %d", releases[0].Index, releases[1].Index)
	}
	if total.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected swept total 30, got %s", total)
	}
	requireTotal(t, ledger, 30)

	// Claimed records are skipped on the next sweep.
	releases, total = ledger.SweepUnlocked(account, 500)
	if len(releases) != 1 || releases[0].Index != 2 {
		t.Fatalf("expected only record 2, got %+v", releases)
	}
	if total.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected swept total 30, got %s", total)
	}
	requireTotal(t, ledger, 0)
	requireAggregateConsistent(t, ledger, account)
}

func TestLedgerRestoreUndoesSweep(t *testing.T) {
	ledger := NewLockLedger()
	account := testAccount(0x05)
	ledger.Append(account, big.NewInt(40), 100)
	ledger.Append(account, big.NewInt(60), 100)

	releases, total := ledger.SweepUnlocked(account, 100)
	if total.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected swept 100, got %s", total)
	}
	ledger.restore(account, releases)
	requireTotal(t, ledger, 100)
	for i, record := range ledger.Locks(account) {
		if record.Claimed {
			t.Fatalf("record %d still claimed after restore", i)
		}
	}
}

func TestLedgerTracksAccountsIndependently(t *testing.T) {
	ledger := NewLockLedger()
	first := testAccount(0x06)
	second := testAccount(0x07)
	ledger.Append(first, big.NewInt(5), 10)
	ledger.Append(second, big.NewInt(7), 10)

	if _, err := ledger.MarkClaimed(first, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	requireTotal(t, ledger, 7)
	if records := ledger.Locks(second); records[0].Claimed {
		t.Fatal("claim leaked across accounts")
	}
	requireAggregateConsistent(t, ledger, first, second)
}
