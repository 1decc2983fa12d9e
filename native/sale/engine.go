package sale

import (
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"tokensale/core/events"
	"tokensale/core/types"
	"tokensale/native/common"
	"tokensale/native/reserve"
	"tokensale/native/token"
)

const moduleName = "sale"

type saleEvent struct {
	evt *types.Event
}

func (e saleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e saleEvent) Event() *types.Event { return e.evt }

// Engine orchestrates purchases and claims over the lock ledger, pricing
// quotes against the configured reserve pair and enforcing access control,
// pause state and inventory constraints.
//
// The engine targets a single-writer, serialized execution environment. Every
// state-mutating entry point holds an exclusive execution guard for its full
// duration; a re-entered call (for example from an asset transfer callback)
// fails with ErrReentrancyBlocked instead of observing partial state.
type Engine struct {
	admin     [20]byte
	vault     [20]byte
	payToken  token.Ledger
	saleToken token.Ledger
	ledger    *LockLedger
	pauses    *common.PauseRegistry
	emitter   events.Emitter
	nowFn     func() int64
	busy      atomic.Bool

	cfgMu        sync.RWMutex
	pair         reserve.Pair
	lockDuration int64
}

// NewEngine constructs a sale engine. The vault address is the engine's own
// custody account on both token ledgers; lockDuration applies to future
// purchases and is expressed in seconds.
func NewEngine(admin, vault [20]byte, payToken, saleToken token.Ledger, pair reserve.Pair, lockDuration int64) *Engine {
	return &Engine{
		admin:        admin,
		vault:        vault,
		payToken:     payToken,
		saleToken:    saleToken,
		pair:         pair,
		lockDuration: lockDuration,
		ledger:       NewLockLedger(),
		pauses:       common.NewPauseRegistry(),
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPauses replaces the pause registry, letting several modules share one
// operational switchboard.
func (e *Engine) SetPauses(pauses *common.PauseRegistry) {
	if e == nil || pauses == nil {
		return
	}
	e.pauses = pauses
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(saleEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// enter acquires the exclusive execution guard shared by every state-mutating
// entry point.
func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrancyBlocked
	}
	return nil
}

func (e *Engine) exit() { e.busy.Store(false) }

func (e *Engine) requireAdmin(caller [20]byte) error {
	if caller != e.admin {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) currentPair() reserve.Pair {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.pair
}

// LockDuration returns the duration, in seconds, applied to future purchases.
func (e *Engine) LockDuration() int64 {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.lockDuration
}

// PayAsset returns the symbol users pay with.
func (e *Engine) PayAsset() string {
	if e == nil || e.payToken == nil {
		return ""
	}
	return e.payToken.Symbol()
}

// SaleAsset returns the symbol being sold.
func (e *Engine) SaleAsset() string {
	if e == nil || e.saleToken == nil {
		return ""
	}
	return e.saleToken.Symbol()
}

// Admin returns the configured admin account.
func (e *Engine) Admin() [20]byte { return e.admin }

// Vault returns the engine's custody account.
func (e *Engine) Vault() [20]byte { return e.vault }

// Paused reports whether user-facing operations are currently rejected.
func (e *Engine) Paused() bool {
	return e.pauses.IsPaused(moduleName)
}

// TotalLocked returns the global aggregate of unclaimed locked sale-asset.
func (e *Engine) TotalLocked() *big.Int {
	return e.ledger.TotalLocked()
}

// UserLocks returns deep copies of the account's full lock history.
func (e *Engine) UserLocks(account [20]byte) []*Lock {
	return e.ledger.Locks(account)
}

// Quote computes the sale-asset output for the given pay-asset input using
// the current reserve snapshot. It is side-effect free and identical to the
// computation performed inside Purchase; the snapshot carries no atomicity
// guarantee across a read-then-use gap, which is why Purchase takes a
// caller-supplied minimum output.
func (e *Engine) Quote(payAmount *big.Int) (*big.Int, error) {
	if e == nil {
		return nil, ErrNilCollaborator
	}
	return e.quote(payAmount)
}

func (e *Engine) quote(payAmount *big.Int) (*big.Int, error) {
	if e.payToken == nil || e.saleToken == nil {
		return nil, ErrNilCollaborator
	}
	reservePay, reserveSale, err := orientReserves(e.currentPair(), e.payToken.Symbol(), e.saleToken.Symbol())
	if err != nil {
		return nil, err
	}
	return QuoteOutput(payAmount, reservePay, reserveSale)
}

// AvailableForWithdrawal returns the held sale-asset balance minus the locked
// total, floored at zero. It is the ceiling on both admin inventory
// withdrawals and new purchases.
func (e *Engine) AvailableForWithdrawal() (*big.Int, error) {
	if e == nil || e.saleToken == nil {
		return nil, ErrNilCollaborator
	}
	return e.availableForWithdrawal()
}

func (e *Engine) availableForWithdrawal() (*big.Int, error) {
	held, err := e.saleToken.BalanceOf(e.vault)
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Sub(held, e.ledger.TotalLocked())
	if available.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return available, nil
}

// Purchase pulls payAmount of the pay-asset from the payer, quotes it against
// the reserve pair and appends a lock record releasing after the configured
// duration. A quote below minSaleAmount aborts with ErrSlippageExceeded; the
// engine never locks more sale-asset than it physically holds unlocked.
//
// Payment is pulled before the lock record and aggregate are committed. The
// ordering is safe only because the execution guard spans the whole call; a
// reentrant callback fired by the payment pull cannot enter any other entry
// point.
func (e *Engine) Purchase(payer [20]byte, payAmount, minSaleAmount *big.Int) (*Receipt, error) {
	if e == nil || e.payToken == nil || e.saleToken == nil {
		return nil, ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if payAmount == nil || payAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	saleAmount, err := e.quote(payAmount)
	if err != nil {
		return nil, err
	}
	minOut := big.NewInt(0)
	if minSaleAmount != nil {
		minOut = minSaleAmount
	}
	if saleAmount.Cmp(minOut) < 0 {
		return nil, ErrSlippageExceeded
	}
	available, err := e.availableForWithdrawal()
	if err != nil {
		return nil, err
	}
	if saleAmount.Cmp(available) > 0 {
		return nil, ErrInsufficientInventory
	}
	if err := e.payToken.Transfer(payer, e.vault, payAmount); err != nil {
		return nil, fmt.Errorf("%w: pull payment: %v", ErrTransferFailed, err)
	}
	releaseTime := e.now() + e.LockDuration()
	index := e.ledger.Append(payer, saleAmount, releaseTime)
	e.emit(NewPurchaseEvent(payer, payAmount, saleAmount, releaseTime, index))
	return &Receipt{
		PayAmount:   new(big.Int).Set(payAmount),
		SaleAmount:  saleAmount,
		ReleaseTime: releaseTime,
		LockIndex:   index,
	}, nil
}

// ClaimAll releases every matured, unclaimed lock held by the claimant and
// transfers the freed sale-asset in one payout. Skipping an individual
// still-locked or already-claimed record is normal filtering; the call fails
// only when the claimant has no records at all or nothing has matured.
func (e *Engine) ClaimAll(claimant [20]byte) (*big.Int, error) {
	if e == nil || e.saleToken == nil {
		return nil, ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.ledger.Count(claimant) == 0 {
		return nil, ErrNoLocks
	}
	releases, total := e.ledger.SweepUnlocked(claimant, e.now())
	if total.Sign() == 0 {
		return nil, ErrNothingUnlocked
	}
	// Claimed flags and the aggregate are committed before the outbound
	// transfer; a failed transfer rolls them back under the guard so no
	// partial claim is ever observable.
	if err := e.saleToken.Transfer(e.vault, claimant, total); err != nil {
		e.ledger.restore(claimant, releases)
		return nil, fmt.Errorf("%w: claim payout: %v", ErrTransferFailed, err)
	}
	for _, release := range releases {
		e.emit(NewClaimEvent(claimant, release.Amount, release.Index))
	}
	return total, nil
}

// ClaimSelected releases exactly the supplied lock indices. The batch is
// all-or-nothing: any out-of-range, unmatured or already-claimed index
// (including a duplicate within the same call) aborts the whole call with no
// state change.
func (e *Engine) ClaimSelected(claimant [20]byte, indices []int) (*big.Int, error) {
	if e == nil || e.saleToken == nil {
		return nil, ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := common.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, ErrNothingToClaim
	}
	now := e.now()
	records := e.ledger.locks[claimant]
	seen := make(map[int]struct{}, len(indices))
	for _, index := range indices {
		if index < 0 || index >= len(records) {
			return nil, ErrInvalidIndex
		}
		if _, dup := seen[index]; dup || records[index].Claimed {
			return nil, ErrAlreadyClaimed
		}
		if records[index].ReleaseTime > now {
			return nil, ErrNotYetUnlocked
		}
		seen[index] = struct{}{}
	}
	total := big.NewInt(0)
	releases := make([]Release, 0, len(indices))
	for _, index := range indices {
		freed, err := e.ledger.MarkClaimed(claimant, index)
		if err != nil {
			e.ledger.restore(claimant, releases)
			return nil, err
		}
		releases = append(releases, Release{Index: index, Amount: freed})
		total = new(big.Int).Add(total, freed)
	}
	if err := e.saleToken.Transfer(e.vault, claimant, total); err != nil {
		e.ledger.restore(claimant, releases)
		return nil, fmt.Errorf("%w: claim payout: %v", ErrTransferFailed, err)
	}
	for _, release := range releases {
		e.emit(NewClaimEvent(claimant, release.Amount, release.Index))
	}
	return total, nil
}

// WithdrawAvailable transfers unlocked sale-asset inventory to the admin. It
// never touches the locked aggregate.
func (e *Engine) WithdrawAvailable(caller [20]byte, amount *big.Int) error {
	if e == nil || e.saleToken == nil {
		return ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	available, err := e.availableForWithdrawal()
	if err != nil {
		return err
	}
	if amount.Cmp(available) > 0 {
		return ErrExceedsAvailable
	}
	if err := e.saleToken.Transfer(e.vault, e.admin, amount); err != nil {
		return fmt.Errorf("%w: inventory withdrawal: %v", ErrTransferFailed, err)
	}
	e.emit(NewWithdrawInventoryEvent(e.admin, amount))
	return nil
}

// WithdrawProceeds transfers accumulated pay-asset proceeds to the admin.
func (e *Engine) WithdrawProceeds(caller [20]byte, amount *big.Int) error {
	if e == nil || e.payToken == nil {
		return ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	held, err := e.payToken.BalanceOf(e.vault)
	if err != nil {
		return err
	}
	if amount.Cmp(held) > 0 {
		return ErrExceedsBalance
	}
	if err := e.payToken.Transfer(e.vault, e.admin, amount); err != nil {
		return fmt.Errorf("%w: proceeds withdrawal: %v", ErrTransferFailed, err)
	}
	e.emit(NewWithdrawProceedsEvent(e.admin, amount))
	return nil
}

// SetPriceSource swaps the reserve pair used by subsequent quotes. Existing
// locks are unaffected.
func (e *Engine) SetPriceSource(caller [20]byte, pair reserve.Pair) error {
	if e == nil {
		return ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if pair == nil {
		return ErrNilCollaborator
	}
	e.cfgMu.Lock()
	e.pair = pair
	e.cfgMu.Unlock()
	e.emit(NewPriceSourceUpdatedEvent(e.admin, pair.AssetA()+"/"+pair.AssetB()))
	return nil
}

// SetLockDuration changes the duration snapshotted by future purchases.
// Existing locks keep the release time computed when they were created.
func (e *Engine) SetLockDuration(caller [20]byte, seconds int64) error {
	if e == nil {
		return ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if seconds < 0 {
		return ErrInvalidAmount
	}
	e.cfgMu.Lock()
	e.lockDuration = seconds
	e.cfgMu.Unlock()
	e.emit(NewLockDurationUpdatedEvent(e.admin, seconds))
	return nil
}

// Pause rejects purchases and claims until Unpause. Admin operations remain
// available while paused.
func (e *Engine) Pause(caller [20]byte) error {
	return e.setPaused(caller, true)
}

// Unpause resumes user-facing operations.
func (e *Engine) Unpause(caller [20]byte) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller [20]byte, paused bool) error {
	if e == nil {
		return ErrNilCollaborator
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.pauses.SetPaused(moduleName, paused)
	if paused {
		e.emit(NewPausedEvent(e.admin))
	} else {
		e.emit(NewUnpausedEvent(e.admin))
	}
	return nil
}
